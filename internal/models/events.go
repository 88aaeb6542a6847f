package models

import "time"

// NATS subjects for checkout lifecycle events
const (
	EventCheckoutConfirmed = "checkout.confirmed"
	EventCheckoutCancelled = "checkout.cancelled"
	EventCheckoutExpired   = "checkout.expired"
	EventCheckoutFailed    = "checkout.failed"
	EventPaymentOutcome    = "payment.outcome"
)

// CheckoutLifecycleEvent is published on every terminal transition of a
// checkout session. EmbeddingOrigin is set only when the purchase context
// enables embedding, so consumers know where to forward the message.
type CheckoutLifecycleEvent struct {
	ReservationID   string            `json:"reservation_id"`
	Status          ReservationStatus `json:"status"`
	State           string            `json:"state"`
	Error           string            `json:"error,omitempty"`
	EmbeddingOrigin string            `json:"embedding_origin,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}

// PaymentOutcomeEvent is published after every provider payment attempt.
type PaymentOutcomeEvent struct {
	AttemptID     string        `json:"attempt_id"`
	ReservationID string        `json:"reservation_id"`
	Method        PaymentMethod `json:"method"`
	Success       bool          `json:"success"`
	Reason        string        `json:"reason,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}
