package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kassa/internal/logger"
)

type Config struct {
	Addr      string
	Password  string
	KeyPrefix string
}

// SessionSnapshot is the persisted shape of a checkout session. It carries
// just enough to resume after a restart; the reservation itself is always
// re-fetched from the backend, never trusted from the snapshot.
type SessionSnapshot struct {
	ReservationID  string    `json:"reservation_id"`
	State          string    `json:"state"`
	SelectedMethod string    `json:"selected_method,omitempty"`
	RedirectURL    string    `json:"redirect_url,omitempty"`
	Language       string    `json:"language,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SessionStore keeps session snapshots in Redis, keyed by reservation id.
type SessionStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewSessionStore(cfg Config) (*SessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Get().Info("Connected to redis", "addr", cfg.Addr)
	return &SessionStore{client: client, keyPrefix: cfg.KeyPrefix}, nil
}

func (s *SessionStore) key(reservationID string) string {
	return s.keyPrefix + reservationID
}

// Save writes the snapshot with the given TTL. The TTL follows the
// reservation deadline plus a grace period, so stale sessions age out on
// their own.
func (s *SessionStore) Save(ctx context.Context, snapshot *SessionSnapshot, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Delete(ctx, snapshot.ReservationID)
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(snapshot.ReservationID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session snapshot: %w", err)
	}
	return nil
}

// Get returns the snapshot for a reservation, or nil when none exists.
func (s *SessionStore) Get(ctx context.Context, reservationID string) (*SessionSnapshot, error) {
	data, err := s.client.Get(ctx, s.key(reservationID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}

	var snapshot SessionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *SessionStore) Delete(ctx context.Context, reservationID string) error {
	return s.client.Del(ctx, s.key(reservationID)).Err()
}

func (s *SessionStore) Close() error {
	return s.client.Close()
}
