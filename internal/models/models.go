package models

// BookingFormRequest carries the contact/attendee data submitted from the
// booking step. The same payload must be re-sent unchanged, plus the ignore
// flag, when the customer acknowledges validation warnings.
type BookingFormRequest struct {
	Contact           ContactInfo        `json:"contact" binding:"required"`
	TicketAssignments []TicketAssignment `json:"ticket_assignments"`
	Billing           *BillingDetails    `json:"billing,omitempty"`
	IgnoreWarnings    bool               `json:"ignore_warnings"`
	Language          string             `json:"language,omitempty"`
}

// ValidationError is a field-scoped error returned by validate/confirm calls.
// Errors whose field does not map to the submitted form are escalated to the
// global list.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Warning is a non-blocking validation finding that needs explicit
// acknowledgement before the checkout can proceed to the overview.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of a validate-to-overview or apply-code call.
type ValidationResult struct {
	Success          bool              `json:"success"`
	Warnings         []Warning         `json:"warnings,omitempty"`
	ValidationErrors []ValidationError `json:"validation_errors,omitempty"`
}

// ConfirmRequest is the overview payload sent with a confirm call.
type ConfirmRequest struct {
	Method          PaymentMethod `json:"method"`
	GatewayToken    string        `json:"gateway_token,omitempty"`
	TermsAccepted   bool          `json:"terms_accepted"`
	PrivacyAccepted bool          `json:"privacy_accepted"`
	CaptchaResponse string        `json:"captcha_response,omitempty"`
	Language        string        `json:"language,omitempty"`
}

// ConfirmResult is the backend's answer to a confirm call. Redirect means the
// customer must be sent to the gateway before settlement completes.
type ConfirmResult struct {
	Success          bool              `json:"success"`
	Redirect         bool              `json:"redirect"`
	RedirectURL      string            `json:"redirect_url,omitempty"`
	ValidationErrors []ValidationError `json:"validation_errors,omitempty"`
}

// ForceCheckResult is the outcome of a forced payment status check.
type ForceCheckResult struct {
	Success bool              `json:"success"`
	Status  ReservationStatus `json:"status"`
}

// ApplyCodeRequest applies a promotional or subscription code to a reservation.
type ApplyCodeRequest struct {
	Code  string `json:"code" binding:"required"`
	Email string `json:"email,omitempty"`
}

// ConfirmCheckoutRequest is the HTTP payload of the confirm endpoint.
type ConfirmCheckoutRequest struct {
	Method          PaymentMethod `json:"method"`
	TermsAccepted   bool          `json:"terms_accepted"`
	PrivacyAccepted bool          `json:"privacy_accepted"`
	CaptchaResponse string        `json:"captcha_response,omitempty"`
	Language        string        `json:"language,omitempty"`
}

// CheckoutStateResponse is the externally visible view of a checkout session.
type CheckoutStateResponse struct {
	ReservationID    string            `json:"reservation_id"`
	State            string            `json:"state"`
	Status           ReservationStatus `json:"status"`
	RemainingSeconds int64             `json:"remaining_seconds"`
	SelectedMethod   PaymentMethod     `json:"selected_method,omitempty"`
	RedirectURL      string            `json:"redirect_url,omitempty"`
	Warnings         []Warning         `json:"warnings,omitempty"`
	ValidationErrors []ValidationError `json:"validation_errors,omitempty"`
	GlobalErrors     []string          `json:"global_errors,omitempty"`
	Reservation      *ReservationView  `json:"reservation,omitempty"`
}

// ConfirmCheckoutResponse reports the result of a confirm attempt.
type ConfirmCheckoutResponse struct {
	State            string            `json:"state"`
	RedirectURL      string            `json:"redirect_url,omitempty"`
	Reason           string            `json:"reason,omitempty"`
	ValidationErrors []ValidationError `json:"validation_errors,omitempty"`
}

// GatewayNotificationPayload is the webhook body pushed by the payment gateway.
type GatewayNotificationPayload struct {
	PaymentID string                 `json:"paymentId"`
	OrderID   string                 `json:"orderId"`
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
