package reservation

import (
	"context"

	"kassa/internal/models"
)

// Repository is the gateway to the backend-owned reservation resource. The
// checkout machine only ever reads views and requests transitions through it;
// it never constructs reservation state of its own.
type Repository interface {
	Fetch(ctx context.Context, id string) (*models.ReservationView, error)
	ValidateToOverview(ctx context.Context, id string, form *models.BookingFormRequest, lang string, ignoreWarnings bool) (*models.ValidationResult, error)
	Confirm(ctx context.Context, id string, overview *models.ConfirmRequest, lang string) (*models.ConfirmResult, error)
	Cancel(ctx context.Context, id string) error
	GetStatus(ctx context.Context, id string) (*models.ReservationView, error)
	ForceStatusCheck(ctx context.Context, id string) (*models.ForceCheckResult, error)
	ApplyCode(ctx context.Context, id, code, email string) (*models.ValidationResult, error)
	RemoveCode(ctx context.Context, id string) error
	ClearToken(ctx context.Context, id string) error
}
