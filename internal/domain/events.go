package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a lifecycle event published to subscribers.
type EventType string

const (
	EventInterviewCreated   EventType = "interview.created"
	EventInterviewCompleted EventType = "interview.completed"
	EventInterviewDeleted   EventType = "interview.deleted"
	EventStudyReset         EventType = "study.reset"
)

// LifecycleEvent records a durable state change of a session.
type LifecycleEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	OwnerID    string    `json:"owner_id"`
	SessionID  string    `json:"session_id,omitempty"`
	PersonaID  string    `json:"persona_id,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewLifecycleEvent stamps a new event with an ID and the current time.
func NewLifecycleEvent(typ EventType, ownerID string) *LifecycleEvent {
	return &LifecycleEvent{
		ID:         uuid.New().String(),
		Type:       typ,
		OwnerID:    ownerID,
		OccurredAt: time.Now().UTC(),
	}
}
