// Package events publishes circulation events to NATS.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"

	"library-management-api/internal/models"
)

// Subjects published after a committed borrow or return.
const (
	SubjectBorrowed = "library.transactions.borrowed"
	SubjectReturned = "library.transactions.returned"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher delivers transaction events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, subject string, t *models.Transaction) error
	Close()
}

// TransactionEvent is the payload of every circulation subject.
type TransactionEvent struct {
	Subject     string              `json:"subject"`
	OccurredAt  time.Time           `json:"occurredAt"`
	Transaction *models.Transaction `json:"transaction"`
}

// Encode renders the event payload for subject.
func Encode(subject string, t *models.Transaction, at time.Time) ([]byte, error) {
	return json.Marshal(TransactionEvent{Subject: subject, OccurredAt: at.UTC(), Transaction: t})
}

// NATS publishes events on a core NATS connection.
type NATS struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect dials url and returns a publisher that owns the connection.
func Connect(url string, logger *slog.Logger) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("library-management-api"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATS{conn: conn, logger: logger}, nil
}

func (p *NATS) Publish(ctx context.Context, subject string, t *models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(subject, t, time.Now())
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATS) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("nats drain failed", "error", err)
		p.conn.Close()
	}
}

// Nop discards every event. It is used when NATS is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, *models.Transaction) error { return nil }

func (Nop) Close() {}
