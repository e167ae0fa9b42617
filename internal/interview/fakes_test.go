package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/grading"
)

// memStore is an in-memory Store.
type memStore struct {
	mu           sync.Mutex
	sessions     map[string]*domain.InterviewSession
	autosaves    int
	failCreate   error
	failUpdate   error
	failComplete error
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*domain.InterviewSession)}
}

func (s *memStore) CreateInterviewSession(_ context.Context, sess *domain.InterviewSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *memStore) GetInterviewSession(_ context.Context, ownerID, id string) (*domain.InterviewSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *memStore) UpdateInterviewAnswers(_ context.Context, ownerID, id string, answers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autosaves++
	if s.failUpdate != nil {
		return s.failUpdate
	}
	sess, ok := s.sessions[id]
	if !ok || sess.OwnerID != ownerID || sess.IsCompleted() {
		return domain.ErrNotFound
	}
	sess.Answers = append([]string(nil), answers...)
	return nil
}

func (s *memStore) CompleteInterviewSession(_ context.Context, ownerID, id string, graded []domain.Question, summary string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failComplete != nil {
		return s.failComplete
	}
	sess, ok := s.sessions[id]
	if !ok || sess.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	if sess.IsCompleted() {
		return domain.ErrTerminal
	}
	sess.Questions = append([]domain.Question(nil), graded...)
	sess.Summary = &summary
	sess.CompletedAt = &completedAt
	return nil
}

func (s *memStore) DeleteInterviewSession(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *memStore) ListInterviewSessions(_ context.Context, ownerID string) ([]*domain.InterviewSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.InterviewSession
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID {
			out = append(out, sess.Clone())
		}
	}
	return out, nil
}

func (s *memStore) stored(id string) *domain.InterviewSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess.Clone()
	}
	return nil
}

// fakeQuestions returns ten questions tagged with the requested difficulty.
type fakeQuestions struct {
	err error
}

func (f *fakeQuestions) Generate(_ context.Context, _ domain.Subject, difficulty domain.Difficulty) ([]domain.Question, error) {
	if f.err != nil {
		return nil, f.err
	}
	qs := make([]domain.Question, domain.QuestionCount)
	for i := range qs {
		qs[i] = domain.Question{Text: fmt.Sprintf("Question %d?", i+1), Difficulty: difficulty}
	}
	return qs, nil
}

// fakeGrader returns feedback for every question unless err is set. When
// gate is non-nil each call waits on it.
type fakeGrader struct {
	calls atomic.Int32
	err   error
	gate  chan struct{}
}

func (g *fakeGrader) Grade(ctx context.Context, questions, _ []string, _ domain.Difficulty) (*grading.Grade, error) {
	g.calls.Add(1)
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	fb := make([]domain.Feedback, len(questions))
	for i := range fb {
		fb[i] = domain.Feedback{Good: "clear", Missing: "complexity"}
	}
	return &grading.Grade{Feedback: fb, Summary: "Well done."}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.LifecycleEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, ev *domain.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.EventType
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

var errMalformed = &grading.ShapeError{Target: grading.ErrMalformedGrade, Raw: "not json", Reason: errors.New("bad shape")}
