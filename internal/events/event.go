// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the application.
const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
	TypePriceChanged       = "product.price_changed"
	TypeUserRegistered     = "user.registered"
	TypeInvoiceIssued      = "invoice.issued"
)

// Event is the envelope written to the topic. Key selects the partition so all events
// of one aggregate stay ordered.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType, key string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher hands events to a broker.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// LogPublisher only logs events. It is used when no brokers are configured.
type LogPublisher struct {
	Logger *slog.Logger
}

// Publish implements Publisher.
func (p LogPublisher) Publish(_ context.Context, evt Event) error {
	if p.Logger != nil {
		p.Logger.Debug("domain event", slog.String("type", evt.Type), slog.String("key", evt.Key), slog.String("id", evt.ID))
	}
	return nil
}

// Close implements Publisher.
func (LogPublisher) Close() error { return nil }
