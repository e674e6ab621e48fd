package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/petmarket/internal/logging"
	"github.com/nats-io/nats.go"
)

// publishMsg is a seam for tests.
var publishMsg = func(conn *nats.Conn, msg *nats.Msg) error {
	return conn.PublishMsg(msg)
}

// NATSPublisher implements Publisher with JSON payloads on core NATS.
type NATSPublisher struct {
	conn *nats.Conn
	log  logging.Logger
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url string, log logging.Logger) (*NATSPublisher, error) {
	ctx := context.Background()

	opts := []nats.Option{
		nats.Name("petmarket publisher"),
		nats.Timeout(5 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn(ctx, "NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info(ctx, "NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info(ctx, "NATS connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	return &NATSPublisher{conn: conn, log: log}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", subject, err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")

	if err := publishMsg(p.conn, msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.log.Debug(ctx, "event published", "subject", subject)
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
