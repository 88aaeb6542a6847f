package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	stan "github.com/nats-io/stan.go"

	"kassa/internal/logger"
)

type Config struct {
	URL       string
	ClusterID string
	ClientID  string
}

// Client wraps a NATS Streaming connection. Publishing is best effort: a
// checkout never fails because an event could not be emitted.
type Client struct {
	conn stan.Conn
}

func Connect(cfg Config) (*Client, error) {
	// Unique client id per process so restarts don't collide with a
	// lingering registration.
	clientID := fmt.Sprintf("%s-%s", cfg.ClientID, uuid.New().String()[:8])

	conn, err := stan.Connect(cfg.ClusterID, clientID,
		stan.NatsURL(cfg.URL),
		stan.SetConnectionLostHandler(func(_ stan.Conn, reason error) {
			logger.Get().Error("NATS connection lost", "error", reason)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS streaming: %w", err)
	}

	logger.Get().Info("Connected to NATS streaming", "url", cfg.URL, "cluster_id", cfg.ClusterID, "client_id", clientID)
	return &Client{conn: conn}, nil
}

// Publish marshals the event and publishes it on the subject. Failures are
// logged and dropped.
func (c *Client) Publish(subject string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Get().Error("failed to marshal event", "subject", subject, "error", err)
		return
	}
	if err := c.conn.Publish(subject, data); err != nil {
		logger.Get().Error("failed to publish event", "subject", subject, "error", err)
		return
	}
	logger.Get().Debug("event published", "subject", subject)
}

// QueueSubscribe registers a durable queue subscription with manual acks.
func (c *Client) QueueSubscribe(subject, queue string, handler func(data []byte) error) (stan.Subscription, error) {
	sub, err := c.conn.QueueSubscribe(subject, queue, func(msg *stan.Msg) {
		if err := handler(msg.Data); err != nil {
			logger.Get().Error("failed to handle event", "subject", subject, "error", err)
			return
		}
		if err := msg.Ack(); err != nil {
			logger.Get().Error("failed to ack event", "subject", subject, "error", err)
		}
	},
		stan.DurableName(queue),
		stan.SetManualAckMode(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
