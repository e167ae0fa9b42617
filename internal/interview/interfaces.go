package interview

import (
	"context"
	"time"

	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/grading"
)

// Store is the persistence the interview flow depends on. Every call is
// scoped by owner.
type Store interface {
	CreateInterviewSession(ctx context.Context, sess *domain.InterviewSession) error
	GetInterviewSession(ctx context.Context, ownerID, id string) (*domain.InterviewSession, error)
	UpdateInterviewAnswers(ctx context.Context, ownerID, id string, answers []string) error
	CompleteInterviewSession(ctx context.Context, ownerID, id string, graded []domain.Question, summary string, completedAt time.Time) error
	DeleteInterviewSession(ctx context.Context, ownerID, id string) error
	ListInterviewSessions(ctx context.Context, ownerID string) ([]*domain.InterviewSession, error)
}

// QuestionSource produces the question set for a new session.
type QuestionSource interface {
	Generate(ctx context.Context, subject domain.Subject, difficulty domain.Difficulty) ([]domain.Question, error)
}

// Grader grades a finished transcript.
type Grader interface {
	Grade(ctx context.Context, questions, answers []string, difficulty domain.Difficulty) (*grading.Grade, error)
}

// Publisher receives lifecycle events. Publishing is best-effort.
type Publisher interface {
	PublishEvent(ctx context.Context, event *domain.LifecycleEvent) error
}

var (
	_ QuestionSource = (*grading.Generator)(nil)
	_ Grader         = (*grading.Grader)(nil)
)
