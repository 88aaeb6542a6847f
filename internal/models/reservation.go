package models

import (
	"time"
)

// ReservationStatus is the backend-owned reservation lifecycle status.
// The checkout never invents a status, it only reads what the backend returns.
type ReservationStatus string

const (
	StatusPending                     ReservationStatus = "PENDING"
	StatusInPayment                   ReservationStatus = "IN_PAYMENT"
	StatusExternalProcessingPayment   ReservationStatus = "EXTERNAL_PROCESSING_PAYMENT"
	StatusWaitingExternalConfirmation ReservationStatus = "WAITING_EXTERNAL_CONFIRMATION"
	StatusOfflinePayment              ReservationStatus = "OFFLINE_PAYMENT"
	StatusDeferredOfflinePayment      ReservationStatus = "DEFERRED_OFFLINE_PAYMENT"
	StatusFinalizing                  ReservationStatus = "FINALIZING"
	StatusComplete                    ReservationStatus = "COMPLETE"
	StatusStuck                       ReservationStatus = "STUCK"
	StatusCancelled                   ReservationStatus = "CANCELLED"
	StatusCreditNoteIssued            ReservationStatus = "CREDIT_NOTE_ISSUED"
)

// Settled reports whether the backend considers the reservation finished,
// successfully or not.
func (s ReservationStatus) Settled() bool {
	switch s {
	case StatusComplete, StatusStuck, StatusCancelled, StatusCreditNoteIssued:
		return true
	}
	return false
}

// PendingExternal reports whether the reservation is waiting on an external
// payment confirmation and should be polled.
func (s ReservationStatus) PendingExternal() bool {
	return s == StatusExternalProcessingPayment || s == StatusWaitingExternalConfirmation
}

// PaymentMethod is the key a customer selects on the overview step.
type PaymentMethod string

const (
	MethodCreditCard   PaymentMethod = "CREDIT_CARD"
	MethodPayPal       PaymentMethod = "PAYPAL"
	MethodIdeal        PaymentMethod = "IDEAL"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodOnSite       PaymentMethod = "ON_SITE"
	MethodNone         PaymentMethod = "NONE"
)

// PaymentProxy identifies the gateway integration behind a payment method.
type PaymentProxy string

const (
	ProxyGateway PaymentProxy = "GATEWAY"
	ProxyPayPal  PaymentProxy = "PAYPAL"
	ProxyIdeal   PaymentProxy = "IDEAL"
	ProxyOffline PaymentProxy = "OFFLINE"
	ProxyOnSite  PaymentProxy = "ON_SITE"
	ProxyNone    PaymentProxy = "NONE"
)

// PaymentMethodDetails describes one entry of the active payment method map.
type PaymentMethodDetails struct {
	Proxy      PaymentProxy      `json:"proxy"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// ContactInfo holds the purchaser contact data, editable until the
// reservation leaves the editing phase.
type ContactInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// TicketAssignment is one attendee record keyed by ticket id, together with
// its additional-field answers.
type TicketAssignment struct {
	TicketID         string              `json:"ticket_id"`
	FirstName        string              `json:"first_name"`
	LastName         string              `json:"last_name"`
	Email            string              `json:"email"`
	AdditionalFields map[string][]string `json:"additional_fields,omitempty"`
}

// BillingDetails is present only when invoicing is enabled for the purchase context.
type BillingDetails struct {
	Company          string `json:"company,omitempty"`
	AddressLine1     string `json:"address_line_1,omitempty"`
	AddressLine2     string `json:"address_line_2,omitempty"`
	ZipCode          string `json:"zip_code,omitempty"`
	City             string `json:"city,omitempty"`
	Country          string `json:"country,omitempty"`
	TaxID            string `json:"tax_id,omitempty"`
	InvoiceRequested bool   `json:"invoice_requested"`
}

// SummaryLine is a single line of the server-computed pricing breakdown.
type SummaryLine struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// OrderSummary is read-only; the backend recomputes it on every mutation.
type OrderSummary struct {
	Lines      []SummaryLine `json:"lines"`
	TotalCents int64         `json:"total_cents"`
	TaxCents   int64         `json:"tax_cents"`
	Currency   string        `json:"currency"`
	Free       bool          `json:"free"`
}

// PurchaseContext is the immutable descriptive data of the sellable entity
// the reservation was made against, either an event or a subscription.
type PurchaseContext struct {
	Type               string  `json:"type"` // "event" or "subscription"
	Identifier         string  `json:"identifier"`
	Title              string  `json:"title"`
	Currency           string  `json:"currency"`
	VATPercent         float64 `json:"vat_percent"`
	EmbeddingEnabled   bool    `json:"embedding_enabled"`
	EmbeddingOrigin    string  `json:"embedding_origin,omitempty"`
	AssignmentEnabled  bool    `json:"assignment_enabled"`
	InvoicingEnabled   bool    `json:"invoicing_enabled"`
	CaptchaRequired    bool    `json:"captcha_required"`
	PrivacyPolicyURL   string  `json:"privacy_policy_url,omitempty"`
	TermsConditionsURL string  `json:"terms_conditions_url,omitempty"`
}

// ReservationView is the projection of the backend-owned reservation consumed
// by the checkout. It is only ever replaced wholesale after a mutating call,
// never patched field by field.
type ReservationView struct {
	ID                   string                                 `json:"id"`
	Status               ReservationStatus                      `json:"status"`
	ValidUntil           time.Time                              `json:"valid_until"`
	Contact              ContactInfo                            `json:"contact"`
	TicketAssignments    []TicketAssignment                     `json:"ticket_assignments"`
	Billing              *BillingDetails                        `json:"billing,omitempty"`
	OrderSummary         OrderSummary                           `json:"order_summary"`
	ActivePaymentMethods map[PaymentMethod]PaymentMethodDetails `json:"active_payment_methods"`
	TokenAcquired        bool                                   `json:"token_acquired"`
	PaymentProxy         PaymentProxy                           `json:"payment_proxy,omitempty"`
	PurchaseContext      PurchaseContext                        `json:"purchase_context"`
}

// Expired reports whether validUntil has passed at the given instant. Once it
// has, the reservation must be treated as expired regardless of cached status.
func (v *ReservationView) Expired(now time.Time) bool {
	return !v.ValidUntil.IsZero() && now.After(v.ValidUntil)
}

// PaymentOutcome is the result of one provider payment attempt.
type PaymentOutcome struct {
	Success            bool   `json:"success"`
	GatewayToken       string `json:"gateway_token,omitempty"`
	RedirectURL        string `json:"redirect_url,omitempty"`
	Reason             string `json:"reason,omitempty"`
	ReservationChanged bool   `json:"reservation_changed"`
}

// StatusNotification is a provider-pushed progress update, distinct from the
// terminal PaymentOutcome. Zero or more may arrive before the outcome.
type StatusNotification struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// CheckoutAttempt is one audited confirm attempt against a reservation.
type CheckoutAttempt struct {
	ID            int64     `json:"id" db:"id"`
	AttemptID     string    `json:"attempt_id" db:"attempt_id"`
	ReservationID string    `json:"reservation_id" db:"reservation_id"`
	Method        string    `json:"method" db:"method"`
	Success       bool      `json:"success" db:"success"`
	Reason        *string   `json:"reason,omitempty" db:"reason"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
