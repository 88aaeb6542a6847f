package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kassa/internal/embed"
	"kassa/internal/logger"
	"kassa/internal/models"
)

// AttemptRecorder persists audited confirm attempts.
type AttemptRecorder interface {
	Record(ctx context.Context, event models.PaymentOutcomeEvent) error
}

// EventRecorder archives consumed lifecycle events.
type EventRecorder interface {
	Record(ctx context.Context, reservationID, subject string, payload []byte) error
}

const handleTimeout = 10 * time.Second

// PaymentOutcomes writes every provider attempt to the audit table.
type PaymentOutcomes struct {
	attempts AttemptRecorder
}

func NewPaymentOutcomes(attempts AttemptRecorder) *PaymentOutcomes {
	return &PaymentOutcomes{attempts: attempts}
}

func (c *PaymentOutcomes) Handle(data []byte) error {
	var event models.PaymentOutcomeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal payment outcome: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if err := c.attempts.Record(ctx, event); err != nil {
		return err
	}
	logger.WithReservation(event.ReservationID).Info("payment outcome recorded",
		"attempt_id", event.AttemptID, "method", event.Method, "success", event.Success)
	return nil
}

// EmbedNotifier delivers events to embedding hosts.
type EmbedNotifier interface {
	Notify(ctx context.Context, origin string, event embed.Event)
}

// EmbedForwarder pushes terminal lifecycle events to the embedding origin
// named in the event payload. Events without an origin are skipped.
type EmbedForwarder struct {
	notifier EmbedNotifier
}

func NewEmbedForwarder(notifier EmbedNotifier) *EmbedForwarder {
	return &EmbedForwarder{notifier: notifier}
}

var embedEventTypes = map[string]string{
	models.EventCheckoutConfirmed: embed.EventConfirmed,
	models.EventCheckoutCancelled: embed.EventCancelled,
	models.EventCheckoutExpired:   embed.EventExpired,
	models.EventCheckoutFailed:    embed.EventFailed,
}

// Handler returns the forwarding handler for one lifecycle subject.
func (f *EmbedForwarder) Handler(subject string) func(data []byte) error {
	eventType := embedEventTypes[subject]
	return func(data []byte) error {
		var event models.CheckoutLifecycleEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("failed to unmarshal lifecycle event: %w", err)
		}
		if event.EmbeddingOrigin == "" {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()

		f.notifier.Notify(ctx, event.EmbeddingOrigin, embed.Event{
			Type:          eventType,
			ReservationID: event.ReservationID,
			Status:        string(event.Status),
			Reason:        event.Error,
			Timestamp:     event.Timestamp,
		})
		return nil
	}
}

// CheckoutEvents archives terminal lifecycle events for audit queries.
type CheckoutEvents struct {
	events EventRecorder
}

func NewCheckoutEvents(events EventRecorder) *CheckoutEvents {
	return &CheckoutEvents{events: events}
}

// Handler returns the handler for one lifecycle subject.
func (c *CheckoutEvents) Handler(subject string) func(data []byte) error {
	return func(data []byte) error {
		var event models.CheckoutLifecycleEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("failed to unmarshal lifecycle event: %w", err)
		}
		if event.ReservationID == "" {
			return fmt.Errorf("lifecycle event without reservation id on %s", subject)
		}

		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()

		if err := c.events.Record(ctx, event.ReservationID, subject, data); err != nil {
			return err
		}
		logger.WithReservation(event.ReservationID).Info("lifecycle event archived",
			"subject", subject, "state", event.State)
		return nil
	}
}
