package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

// Producer publishes lifecycle events to the queue.
type Producer struct {
	conn *Connection
}

// NewProducer creates a new queue producer
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// PublishEvent publishes a lifecycle event. Events without an ID or a
// timestamp are stamped first.
func (p *Producer) PublishEvent(ctx context.Context, event *domain.LifecycleEvent) error {
	if event.ID == "" || event.OccurredAt.IsZero() {
		stamped := domain.NewLifecycleEvent(event.Type, event.OwnerID)
		if event.ID == "" {
			event.ID = stamped.ID
		}
		if event.OccurredAt.IsZero() {
			event.OccurredAt = stamped.OccurredAt
		}
	}

	if err := p.conn.PublishJSON(ctx, EventQueueName, event); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	slog.Debug("published lifecycle event",
		"event_id", event.ID,
		"type", event.Type,
		"owner_id", event.OwnerID,
	)
	return nil
}
