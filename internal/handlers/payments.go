package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kassa/internal/models"
)

// GatewayNotification is the webhook the payment gateway calls when a payment
// changes state. The payload is advisory; the session is settled from the
// backend status, never from the webhook body.
func (h *Handlers) GatewayNotification(c *gin.Context) {
	var payload models.GatewayNotificationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if payload.OrderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderId is required"})
		return
	}

	if err := h.Checkout.HandleGatewayNotification(c.Request.Context(), payload); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// PaymentReturn handles the customer coming back from the gateway redirect.
// It forces a provider re-check and returns the resulting session state.
func (h *Handlers) PaymentReturn(c *gin.Context) {
	reservationID := c.Param("reservationId")

	if _, err := h.Checkout.ForceCheck(c.Request.Context(), reservationID); err != nil {
		respondError(c, err)
		return
	}

	m, err := h.Checkout.Open(c.Request.Context(), reservationID, "")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Checkout.StateResponse(m))
}

// ForceCheck triggers a backend-side provider re-query for stuck payments.
func (h *Handlers) ForceCheck(c *gin.Context) {
	result, err := h.Checkout.ForceCheck(c.Request.Context(), c.Param("reservationId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
