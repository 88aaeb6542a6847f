package repository

import (
	"context"
	"fmt"

	"kassa/internal/database"
)

// EventRepository archives consumed lifecycle events for audit queries.
type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Record(ctx context.Context, reservationID, subject string, payload []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkout_events (reservation_id, subject, payload)
		VALUES ($1, $2, $3)`,
		reservationID, subject, payload)
	if err != nil {
		return fmt.Errorf("failed to record checkout event: %w", err)
	}
	return nil
}
