package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/generation"
	"github.com/felixgeelhaar/mentora/internal/grading"
)

// State is the stage of one interview.
type State string

const (
	StateReady     State = "ready"
	StateAnswering State = "answering"
	StateGrading   State = "grading"
	StateResults   State = "results"
)

// Snapshot is a point-in-time copy of a machine.
type Snapshot struct {
	State     State                   `json:"state"`
	Index     int                     `json:"index"`
	Remaining int                     `json:"remaining_seconds"`
	Running   bool                    `json:"running"`
	Deleted   bool                    `json:"deleted,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Session   *domain.InterviewSession `json:"session"`
}

// Machine drives one interview from ready to results. Events are serialized
// by a mutex; grading runs outside it while a busy flag rejects new events.
type Machine struct {
	mu        sync.Mutex
	session   *domain.InterviewSession
	state     State
	index     int
	remaining int
	total     int
	running   bool
	busy      bool
	deleted   bool
	lastErr   string

	store     Store
	grader    Grader
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func newMachine(sess *domain.InterviewSession, duration time.Duration, store Store, grader Grader, publisher Publisher, logger *slog.Logger) *Machine {
	total := int(duration / time.Second)
	m := &Machine{
		session:   sess,
		state:     StateReady,
		remaining: total,
		total:     total,
		store:     store,
		grader:    grader,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
	if sess.IsCompleted() {
		m.state = StateResults
		m.remaining = 0
	}
	return m
}

// ID returns the session ID.
func (m *Machine) ID() string {
	return m.session.ID
}

// OwnerID returns the session owner.
func (m *Machine) OwnerID() string {
	return m.session.OwnerID
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Machine) snapshot() Snapshot {
	return Snapshot{
		State:     m.state,
		Index:     m.index,
		Remaining: m.remaining,
		Running:   m.running,
		Deleted:   m.deleted,
		Error:     m.lastErr,
		Session:   m.session.Clone(),
	}
}

// Dispatch applies one event and returns the resulting snapshot.
func (m *Machine) Dispatch(ctx context.Context, ev Event) (Snapshot, error) {
	m.mu.Lock()
	if m.busy {
		snap := m.snapshot()
		m.mu.Unlock()
		return snap, fmt.Errorf("%s: %w", ev.eventName(), domain.ErrBusy)
	}

	submit, err := m.apply(ctx, ev)
	if err != nil || !submit {
		snap := m.snapshot()
		m.mu.Unlock()
		return snap, err
	}

	// grading
	m.state = StateGrading
	m.running = false
	m.busy = true
	m.lastErr = ""
	questions := m.session.QuestionTexts()
	answers := append([]string(nil), m.session.Answers...)
	difficulty := m.session.Difficulty
	m.mu.Unlock()

	// a submit runs to completion even if the caller goes away
	ctx = context.WithoutCancel(ctx)
	m.logger.Info("grading interview", "session_id", m.session.ID, "auto", ev.eventName() == "tick")
	grade, gradeErr := m.grader.Grade(ctx, questions, answers, difficulty)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false
	if gradeErr != nil {
		return m.recover(gradeErr, "grading failed")
	}

	graded, err := m.session.Graded(grade.Feedback, grade.Summary, m.now())
	if err != nil {
		return m.recover(err, "grading failed")
	}
	if err := m.store.CompleteInterviewSession(ctx, graded.OwnerID, graded.ID, graded.Questions, grade.Summary, *graded.CompletedAt); err != nil {
		return m.recover(err, "saving results failed")
	}

	m.session = graded
	m.state = StateResults
	m.remaining = 0
	m.logger.Info("interview completed", "session_id", graded.ID)
	m.publish(ctx, domain.EventInterviewCompleted, grade.Summary)
	return m.snapshot(), nil
}

// recover returns to answering with the timer paused and the transcript
// untouched.
func (m *Machine) recover(err error, op string) (Snapshot, error) {
	m.state = StateAnswering
	m.running = false
	m.lastErr = userMessage(err)
	m.logger.Warn(op, "session_id", m.session.ID, "error", err)
	return m.snapshot(), fmt.Errorf("%s: %w", op, err)
}

// apply handles every event under the lock. It reports whether the caller
// should submit the transcript for grading.
func (m *Machine) apply(ctx context.Context, ev Event) (bool, error) {
	if m.deleted {
		return false, fmt.Errorf("%s: %w", ev.eventName(), domain.ErrNotFound)
	}

	switch e := ev.(type) {
	case Start:
		if m.state != StateReady {
			return false, m.invalid(ev)
		}
		m.state = StateAnswering
		m.running = true
		m.remaining = m.total
		return false, nil

	case Pause:
		if m.state != StateAnswering {
			return false, m.invalid(ev)
		}
		m.running = false
		return false, nil

	case Resume:
		if m.state != StateAnswering {
			return false, m.invalid(ev)
		}
		if m.remaining <= 0 {
			return false, fmt.Errorf("%w: time is up, finish to submit", domain.ErrInvalidTransition)
		}
		m.running = true
		return false, nil

	case Tick:
		if m.state != StateAnswering || !m.running {
			return false, nil
		}
		m.remaining--
		if m.remaining > 0 {
			return false, nil
		}
		m.remaining = 0
		return true, nil

	case Navigate:
		if m.state != StateAnswering {
			return false, m.invalid(ev)
		}
		if e.Index < 0 || e.Index >= len(m.session.Questions) {
			return false, fmt.Errorf("%w: question index %d out of range", domain.ErrInvalidInput, e.Index)
		}
		m.index = e.Index
		return false, nil

	case Answer:
		if m.state != StateAnswering {
			return false, m.invalid(ev)
		}
		m.session.Answers[m.index] = e.Text
		m.autosave(ctx)
		return false, nil

	case Finish:
		if m.state != StateAnswering {
			return false, m.invalid(ev)
		}
		return true, nil

	case Delete:
		if !e.Confirmed {
			return false, domain.ErrConfirmationRequired
		}
		if m.state != StateReady && m.state != StateAnswering {
			return false, m.invalid(ev)
		}
		if err := m.store.DeleteInterviewSession(ctx, m.session.OwnerID, m.session.ID); err != nil {
			return false, fmt.Errorf("delete session: %w", err)
		}
		m.deleted = true
		m.running = false
		m.publish(ctx, domain.EventInterviewDeleted, "")
		return false, nil

	default:
		return false, fmt.Errorf("%w: unsupported event %T", domain.ErrInvalidInput, ev)
	}
}

func (m *Machine) invalid(ev Event) error {
	if m.state == StateResults {
		return fmt.Errorf("%s: %w", ev.eventName(), domain.ErrTerminal)
	}
	return fmt.Errorf("%w: %s while %s", domain.ErrInvalidTransition, ev.eventName(), m.state)
}

// autosave writes the whole answers array. Failures are logged; the next
// answer retries with the complete array.
func (m *Machine) autosave(ctx context.Context) {
	answers := append([]string(nil), m.session.Answers...)
	if err := m.store.UpdateInterviewAnswers(ctx, m.session.OwnerID, m.session.ID, answers); err != nil {
		m.logger.Warn("autosave failed", "session_id", m.session.ID, "error", err)
	}
}

func (m *Machine) publish(ctx context.Context, typ domain.EventType, summary string) {
	if m.publisher == nil {
		return
	}
	ev := domain.NewLifecycleEvent(typ, m.session.OwnerID)
	ev.SessionID = m.session.ID
	ev.Summary = summary
	if err := m.publisher.PublishEvent(ctx, ev); err != nil {
		m.logger.Warn("publish event failed", "type", typ, "error", err)
	}
}

// userMessage hides raw provider output from the caller.
func userMessage(err error) string {
	var shape *grading.ShapeError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Grading was interrupted. Please submit again."
	case errors.As(err, &shape):
		return "The grading response was malformed. Please submit again."
	case generation.KindOf(err) != "":
		return "Grading is temporarily unavailable. Please submit again."
	default:
		return "Your results could not be saved. Please submit again."
	}
}
