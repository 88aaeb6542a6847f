package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"kassa/internal/logger"
)

// Event types pushed to the embedding host.
const (
	EventConfirmed = "checkout.confirmed"
	EventCancelled = "checkout.cancelled"
	EventExpired   = "checkout.expired"
	EventFailed    = "checkout.failed"
)

type Config struct {
	Timeout time.Duration
}

// Event is the payload delivered to the embedding origin when a checkout
// session reaches a terminal state.
type Event struct {
	Type          string    `json:"type"`
	ReservationID string    `json:"reservation_id"`
	Status        string    `json:"status,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Notifier delivers lifecycle events to sites that embed the checkout.
// Delivery is best effort: a failed notification is logged and dropped, it
// never blocks or retries, and it never changes the checkout outcome.
type Notifier struct {
	httpClient *http.Client
}

func NewNotifier(cfg Config) *Notifier {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Notifier{
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Notify posts the event to the embedding origin's callback endpoint. A blank
// origin means the purchase context is not embedded and the call is a no-op.
func (n *Notifier) Notify(ctx context.Context, origin string, event Event) {
	if origin == "" {
		return
	}
	log := logger.WithReservation(event.ReservationID)

	body, err := json.Marshal(event)
	if err != nil {
		log.Warn("failed to marshal embedding event", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, origin+"/api/v1/checkout/events", bytes.NewBuffer(body))
	if err != nil {
		log.Warn("failed to create embedding notification", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		log.Warn("embedding notification failed", "origin", origin, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Warn("embedding notification rejected", "origin", origin, "status", resp.StatusCode)
		return
	}
	log.Debug("embedding notification delivered", "origin", origin, "type", event.Type)
}
