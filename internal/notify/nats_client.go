package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/releaser/internal/config"
)

// NATSClient publishes release events to a JetStream stream.
type NATSClient struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream string
}

// NewNATSClient connects to cfg.NATSURL and ensures a stream capturing
// "<subject>.>" exists.
func NewNATSClient(ctx context.Context, cfg config.NotifyConfig) (*NATSClient, error) {
	if cfg.NATSURL == "" {
		return nil, fmt.Errorf("notify: nats_url is required")
	}

	conn, err := nats.Connect(cfg.NATSURL, nats.Name("releaser"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &NATSClient{conn: conn, js: js, stream: cfg.Stream}
	if err := client.ensureStream(ctx, cfg.Subject); err != nil {
		conn.Close()
		return nil, err
	}

	slog.Info("NATS client initialized for release notifications",
		"url", cfg.NATSURL,
		"subject", cfg.Subject,
		"stream", cfg.Stream)

	return client, nil
}

func (c *NATSClient) ensureStream(ctx context.Context, subject string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        c.stream,
		Description: "Release pipeline events",
		Subjects:    []string{subject + ".>"},
		MaxAge:      30 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to ensure stream %s: %w", c.stream, err)
	}
	return nil
}

// Publish implements Publisher.
func (c *NATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (c *NATSClient) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}
