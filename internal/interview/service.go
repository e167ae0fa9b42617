// Package interview implements timed mock interviews: question set
// acquisition, answering with autosave, grading and terminal results.
package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

// Service creates, loads and removes interview sessions.
type Service struct {
	store     Store
	questions QuestionSource
	grader    Grader
	publisher Publisher
	logger    *slog.Logger
	duration  time.Duration
}

// NewService creates a new interview service.
func NewService(store Store, questions QuestionSource, grader Grader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		questions: questions,
		grader:    grader,
		logger:    logger,
		duration:  domain.InterviewDuration,
	}
}

// SetPublisher sets the lifecycle event publisher.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// SetDuration overrides the countdown length of newly opened machines.
func (s *Service) SetDuration(d time.Duration) {
	if d >= time.Second {
		s.duration = d
	}
}

// CreateRequest contains data for creating a session.
type CreateRequest struct {
	OwnerID    string            `json:"-"`
	Subject    domain.Subject    `json:"type"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

// Validate rejects missing fields before any generation call.
func (r CreateRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.OwnerID) == "":
		return fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	case strings.TrimSpace(string(r.Subject)) == "":
		return fmt.Errorf("%w: type is required", domain.ErrInvalidInput)
	case strings.TrimSpace(string(r.Difficulty)) == "":
		return fmt.Errorf("%w: difficulty is required", domain.ErrInvalidInput)
	}
	return nil
}

// Create generates a question set and persists a new session.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.InterviewSession, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	questions, err := s.questions.Generate(ctx, req.Subject, req.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	sess := domain.NewInterviewSession(req.OwnerID, req.Subject, req.Difficulty, questions)
	if err := s.store.CreateInterviewSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.Info("interview created",
		"session_id", sess.ID,
		"subject", sess.Subject,
		"difficulty", sess.Difficulty)

	if s.publisher != nil {
		ev := domain.NewLifecycleEvent(domain.EventInterviewCreated, sess.OwnerID)
		ev.SessionID = sess.ID
		if err := s.publisher.PublishEvent(ctx, ev); err != nil {
			s.logger.Warn("publish event failed", "type", ev.Type, "error", err)
		}
	}
	return sess, nil
}

// Open loads a session into a machine. Completed sessions open in results;
// unfinished ones open in ready with a full timer.
func (s *Service) Open(ctx context.Context, ownerID, id string) (*Machine, error) {
	sess, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return newMachine(sess, s.duration, s.store, s.grader, s.publisher, s.logger), nil
}

// Get retrieves one of the owner's sessions.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*domain.InterviewSession, error) {
	sess, err := s.store.GetInterviewSession(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// List returns the owner's sessions, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]*domain.InterviewSession, error) {
	sessions, err := s.store.ListInterviewSessions(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session from history. There is no undo.
func (s *Service) Delete(ctx context.Context, ownerID, id string, confirmed bool) error {
	if !confirmed {
		return domain.ErrConfirmationRequired
	}
	if err := s.store.DeleteInterviewSession(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	s.logger.Info("interview deleted", "session_id", id)
	if s.publisher != nil {
		ev := domain.NewLifecycleEvent(domain.EventInterviewDeleted, ownerID)
		ev.SessionID = id
		if err := s.publisher.PublishEvent(ctx, ev); err != nil {
			s.logger.Warn("publish event failed", "type", ev.Type, "error", err)
		}
	}
	return nil
}
