package study

import (
	"context"

	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/lesson"
)

// Store is the persistence a study conversation depends on.
type Store interface {
	GetStudyState(ctx context.Context, ownerID, personaID string) (*domain.StudySessionState, error)
	WriteStudyState(ctx context.Context, st *domain.StudySessionState) error
	AppendStudyMessage(ctx context.Context, msg *domain.TranscriptMessage) error
	ListStudyMessages(ctx context.Context, ownerID, personaID string) ([]domain.TranscriptMessage, error)
	ResetStudyState(ctx context.Context, ownerID, personaID string) error
	GetPersona(ctx context.Context, id string) (*domain.Persona, error)
}

// Lessons plans guided topics and explains their steps.
type Lessons interface {
	Start(ctx context.Context, personaPrompt, topic, query string) (*lesson.Response, error)
	Continue(ctx context.Context, personaPrompt, topic string, plan []string, step int) (*lesson.Response, error)
}

// Retriever supplies an expert answer for advice questions.
type Retriever interface {
	Retrieve(ctx context.Context, topic, query string) (string, error)
}

// Publisher receives lifecycle events. Publishing is best-effort.
type Publisher interface {
	PublishEvent(ctx context.Context, event *domain.LifecycleEvent) error
}

var _ Lessons = (*lesson.Service)(nil)
