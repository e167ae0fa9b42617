package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

// EventLog records lifecycle events locally. It is the publisher used when
// no broker is configured.
type EventLog struct {
	db *DB
}

// NewEventLog creates a new SQLite-backed event log.
func NewEventLog(db *DB) *EventLog {
	return &EventLog{db: db}
}

// PublishEvent stores an event. Re-publishing the same ID is a no-op.
func (l *EventLog) PublishEvent(ctx context.Context, ev *domain.LifecycleEvent) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO lifecycle_events (id, event_type, owner_id, session_id, persona_id, summary, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, string(ev.Type), ev.OwnerID, nullString(ev.SessionID), nullString(ev.PersonaID), ev.Summary, ev.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert lifecycle event: %w", err)
	}
	return nil
}

// ListEvents returns an owner's events newest first, optionally filtered by
// type and start time. limit <= 0 means no limit.
func (l *EventLog) ListEvents(ctx context.Context, ownerID string, typ domain.EventType, since time.Time, limit int) ([]*domain.LifecycleEvent, error) {
	query := "SELECT id, event_type, owner_id, session_id, persona_id, summary, occurred_at FROM lifecycle_events WHERE owner_id = ?"
	args := []any{ownerID}

	if typ != "" {
		query += " AND event_type = ?"
		args = append(args, string(typ))
	}
	if !since.IsZero() {
		query += " AND occurred_at >= ?"
		args = append(args, since.UTC())
	}
	query += " ORDER BY occurred_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lifecycle events: %w", err)
	}
	defer rows.Close()

	var events []*domain.LifecycleEvent
	for rows.Next() {
		var (
			ev        domain.LifecycleEvent
			kind      string
			sessionID sql.NullString
			personaID sql.NullString
		)
		if err := rows.Scan(&ev.ID, &kind, &ev.OwnerID, &sessionID, &personaID, &ev.Summary, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan lifecycle event: %w", err)
		}
		ev.Type = domain.EventType(kind)
		ev.SessionID = sessionID.String
		ev.PersonaID = personaID.String
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// Prune deletes events older than the given duration.
func (l *EventLog) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC()
	result, err := l.db.ExecContext(ctx, "DELETE FROM lifecycle_events WHERE occurred_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune lifecycle events: %w", err)
	}
	return result.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
