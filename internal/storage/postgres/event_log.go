package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

// EventLog records lifecycle events in the database.
type EventLog struct {
	db *DB
}

// NewEventLog creates a new PostgreSQL-backed event log.
func NewEventLog(db *DB) *EventLog {
	return &EventLog{db: db}
}

// PublishEvent stores an event. Re-publishing the same ID is a no-op.
func (l *EventLog) PublishEvent(ctx context.Context, ev *domain.LifecycleEvent) error {
	_, err := l.db.Exec(ctx, `
		INSERT INTO lifecycle_events (id, event_type, owner_id, session_id, persona_id, summary, occurred_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, string(ev.Type), ev.OwnerID, ev.SessionID, ev.PersonaID, ev.Summary, ev.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert lifecycle event: %w", err)
	}
	return nil
}

// ListEvents returns an owner's events newest first, optionally filtered by
// type and start time. limit <= 0 means no limit.
func (l *EventLog) ListEvents(ctx context.Context, ownerID string, typ domain.EventType, since time.Time, limit int) ([]*domain.LifecycleEvent, error) {
	query := `SELECT id, event_type, owner_id, COALESCE(session_id, ''), COALESCE(persona_id, ''), summary, occurred_at
		FROM lifecycle_events WHERE owner_id = $1`
	args := []any{ownerID}

	if typ != "" {
		args = append(args, string(typ))
		query += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	if !since.IsZero() {
		args = append(args, since.UTC())
		query += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}
	query += " ORDER BY occurred_at DESC, id"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lifecycle events: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.LifecycleEvent, error) {
		var ev domain.LifecycleEvent
		var kind string
		if err := row.Scan(&ev.ID, &kind, &ev.OwnerID, &ev.SessionID, &ev.PersonaID, &ev.Summary, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan lifecycle event: %w", err)
		}
		ev.Type = domain.EventType(kind)
		return &ev, nil
	})
}

// Prune deletes events older than the given duration.
func (l *EventLog) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := l.db.Exec(ctx, "DELETE FROM lifecycle_events WHERE occurred_at < $1", time.Now().Add(-olderThan).UTC())
	if err != nil {
		return 0, fmt.Errorf("prune lifecycle events: %w", err)
	}
	return tag.RowsAffected(), nil
}
