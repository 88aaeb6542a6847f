package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	kerrors "kassa/internal/errors"
	"kassa/internal/models"
)

// GetState opens (or resumes) the checkout session and returns its state.
func (h *Handlers) GetState(c *gin.Context) {
	m, err := h.Checkout.Open(c.Request.Context(), c.Param("reservationId"), c.Query("lang"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Checkout.StateResponse(m))
}

// SubmitForm validates the booking form and, when clean, moves the session to
// the overview step.
func (h *Handlers) SubmitForm(c *gin.Context) {
	var form models.BookingFormRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	m, err := h.Checkout.Open(c.Request.Context(), c.Param("reservationId"), form.Language)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := m.SubmitBookingForm(c.Request.Context(), &form)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := h.Checkout.StateResponse(m)
	resp.Warnings = result.Warnings
	resp.ValidationErrors = result.ValidationErrors
	c.JSON(http.StatusOK, resp)
}

// AcknowledgeWarnings retries the pending submission with the warnings
// acknowledged.
func (h *Handlers) AcknowledgeWarnings(c *gin.Context) {
	m, err := h.Checkout.Open(c.Request.Context(), c.Param("reservationId"), "")
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := m.AcknowledgeWarnings(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Checkout.StateResponse(m))
}

// RejectWarnings drops the pending warnings and stays on the booking step.
func (h *Handlers) RejectWarnings(c *gin.Context) {
	m, err := h.Checkout.Open(c.Request.Context(), c.Param("reservationId"), "")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := m.RejectWarnings(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Checkout.StateResponse(m))
}

// Edit returns from the overview to the booking step.
func (h *Handlers) Edit(c *gin.Context) {
	m, err := h.Checkout.Open(c.Request.Context(), c.Param("reservationId"), "")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := m.Edit(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Checkout.StateResponse(m))
}

// Confirm runs a payment attempt for the selected method.
func (h *Handlers) Confirm(c *gin.Context) {
	var req models.ConfirmCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	m, err := h.Checkout.Open(c.Request.Context(), c.Param("reservationId"), req.Language)
	if err != nil {
		respondError(c, err)
		return
	}

	if view := m.View(); view != nil && view.PurchaseContext.CaptchaRequired && req.CaptchaResponse == "" {
		respondError(c, kerrors.ErrCaptchaFailed)
		return
	}

	outcome, err := m.Confirm(c.Request.Context(), &models.ConfirmRequest{
		Method:          req.Method,
		TermsAccepted:   req.TermsAccepted,
		PrivacyAccepted: req.PrivacyAccepted,
		CaptchaResponse: req.CaptchaResponse,
		Language:        req.Language,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ConfirmCheckoutResponse{
		State:            string(outcome.State),
		RedirectURL:      outcome.RedirectURL,
		Reason:           outcome.Reason,
		ValidationErrors: outcome.ValidationErrors,
	})
}

// Cancel requests explicit cancellation of the reservation.
func (h *Handlers) Cancel(c *gin.Context) {
	m, err := h.Checkout.Open(c.Request.Context(), c.Param("reservationId"), "")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := m.Cancel(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Checkout.StateResponse(m))
}

// ApplyCode applies a promotional or subscription code.
func (h *Handlers) ApplyCode(c *gin.Context) {
	var req models.ApplyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	m, err := h.Checkout.Open(c.Request.Context(), c.Param("reservationId"), "")
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := m.ApplyCode(c.Request.Context(), req.Code, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, h.Checkout.StateResponse(m))
}

// RemoveCode removes a previously applied code.
func (h *Handlers) RemoveCode(c *gin.Context) {
	m, err := h.Checkout.Open(c.Request.Context(), c.Param("reservationId"), "")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := m.RemoveCode(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Checkout.StateResponse(m))
}

// ClearToken discards an acquired gateway token and reopens editing.
func (h *Handlers) ClearToken(c *gin.Context) {
	m, err := h.Checkout.Open(c.Request.Context(), c.Param("reservationId"), "")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := m.ClearToken(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Checkout.StateResponse(m))
}

// CloseSession tears the live session down.
func (h *Handlers) CloseSession(c *gin.Context) {
	h.Checkout.CloseSession(c.Request.Context(), c.Param("reservationId"))
	c.Status(http.StatusNoContent)
}

// ListAttempts returns the audited confirm attempts for a reservation.
func (h *Handlers) ListAttempts(c *gin.Context) {
	if h.Attempts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attempt audit is not available"})
		return
	}
	attempts, err := h.Attempts.ListByReservation(c.Request.Context(), c.Param("reservationId"), 50)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}
