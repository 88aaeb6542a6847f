package database

import (
	"fmt"

	"kassa/internal/logger"
)

// Migrations are applied in order on startup. Each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS checkout_attempts (
		id BIGSERIAL PRIMARY KEY,
		attempt_id UUID NOT NULL UNIQUE,
		reservation_id VARCHAR(64) NOT NULL,
		method VARCHAR(32) NOT NULL,
		success BOOLEAN NOT NULL,
		reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_checkout_attempts_reservation
		ON checkout_attempts (reservation_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS checkout_events (
		id BIGSERIAL PRIMARY KEY,
		reservation_id VARCHAR(64) NOT NULL,
		subject VARCHAR(64) NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_checkout_events_reservation
		ON checkout_events (reservation_id, created_at DESC)`,
}

// RunMigrations applies the schema migrations.
func (db *DB) RunMigrations() error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	logger.Get().Info("Database migrations applied", "count", len(migrations))
	return nil
}
