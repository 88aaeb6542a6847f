package errors

import "errors"

// Recoverable checkout errors: the machine stays in a non-terminal state and
// the caller may retry.
var ErrConfirmInFlight = errors.New("a confirm request is already in flight")
var ErrNotReadyToConfirm = errors.New("checkout is not on the overview step")
var ErrNotEditable = errors.New("reservation is no longer editable")
var ErrNoPaymentMethod = errors.New("no payment method selected")
var ErrMethodUnavailable = errors.New("selected payment method is not available for this reservation")
var ErrAcceptanceRequired = errors.New("terms and privacy policy must be accepted")
var ErrUnknownPaymentMethod = errors.New("no payment provider registered for the selected method")
var ErrWarningsPending = errors.New("validation warnings must be acknowledged or rejected first")
var ErrNoPendingWarnings = errors.New("no validation warnings are pending")
var ErrCaptchaFailed = errors.New("captcha verification failed")

// ErrPaymentProcessing is the single generic error surfaced for transport-level
// failures; raw details never reach the customer.
var ErrPaymentProcessing = errors.New("payment processing error")

// Terminal conditions.
var ErrReservationExpired = errors.New("reservation has expired")
var ErrReservationNotFound = errors.New("reservation not found")
var ErrSessionClosed = errors.New("checkout session is closed")
