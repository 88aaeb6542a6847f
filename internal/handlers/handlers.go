package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	kerrors "kassa/internal/errors"
	"kassa/internal/repository"
	"kassa/internal/service"
)

// Handlers carries the HTTP layer dependencies. Attempts is optional; the
// audit endpoints return 503 when no database is wired.
type Handlers struct {
	Checkout *service.CheckoutService
	Attempts *repository.AttemptRepository
}

func New(checkoutSvc *service.CheckoutService, attempts *repository.AttemptRepository) *Handlers {
	return &Handlers{Checkout: checkoutSvc, Attempts: attempts}
}

// respondError maps domain errors to HTTP status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, kerrors.ErrReservationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, kerrors.ErrReservationExpired),
		errors.Is(err, kerrors.ErrSessionClosed):
		status = http.StatusGone
	case errors.Is(err, kerrors.ErrConfirmInFlight),
		errors.Is(err, kerrors.ErrNotReadyToConfirm),
		errors.Is(err, kerrors.ErrNotEditable),
		errors.Is(err, kerrors.ErrWarningsPending),
		errors.Is(err, kerrors.ErrNoPendingWarnings):
		status = http.StatusConflict
	case errors.Is(err, kerrors.ErrNoPaymentMethod),
		errors.Is(err, kerrors.ErrMethodUnavailable),
		errors.Is(err, kerrors.ErrAcceptanceRequired),
		errors.Is(err, kerrors.ErrUnknownPaymentMethod),
		errors.Is(err, kerrors.ErrCaptchaFailed):
		status = http.StatusBadRequest
	case errors.Is(err, kerrors.ErrPaymentProcessing):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
