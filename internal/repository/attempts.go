package repository

import (
	"context"
	"database/sql"
	"fmt"

	"kassa/internal/database"
	"kassa/internal/models"
)

// AttemptRepository persists the audit trail of confirm attempts.
type AttemptRepository struct {
	db *database.DB
}

func NewAttemptRepository(db *database.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Record inserts one attempt. Duplicate attempt ids are ignored so event
// redelivery stays idempotent.
func (r *AttemptRepository) Record(ctx context.Context, event models.PaymentOutcomeEvent) error {
	var reason sql.NullString
	if event.Reason != "" {
		reason = sql.NullString{String: event.Reason, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkout_attempts (attempt_id, reservation_id, method, success, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (attempt_id) DO NOTHING`,
		event.AttemptID, event.ReservationID, string(event.Method), event.Success, reason, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record checkout attempt: %w", err)
	}
	return nil
}

// ListByReservation returns the attempts for one reservation, newest first.
func (r *AttemptRepository) ListByReservation(ctx context.Context, reservationID string, limit int) ([]models.CheckoutAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, attempt_id, reservation_id, method, success, reason, created_at
		FROM checkout_attempts
		WHERE reservation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		reservationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkout attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.CheckoutAttempt
	for rows.Next() {
		var a models.CheckoutAttempt
		var reason sql.NullString
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.ReservationID, &a.Method, &a.Success, &reason, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkout attempt: %w", err)
		}
		if reason.Valid {
			a.Reason = &reason.String
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
