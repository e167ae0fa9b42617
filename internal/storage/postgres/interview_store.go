package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

// InterviewStore persists interview sessions. Every query is scoped by owner.
type InterviewStore struct {
	db *DB
}

// NewInterviewStore creates a new PostgreSQL-backed interview store.
func NewInterviewStore(db *DB) *InterviewStore {
	return &InterviewStore{db: db}
}

const interviewColumns = `id::text, owner_id, subject, difficulty, questions, answers, summary, started_at, completed_at`

// CreateInterviewSession inserts a new, unfinished session.
func (s *InterviewStore) CreateInterviewSession(ctx context.Context, sess *domain.InterviewSession) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	if _, err := uuid.Parse(sess.ID); err != nil {
		return fmt.Errorf("%w: session id %q", domain.ErrInvalidInput, sess.ID)
	}
	questions, err := json.Marshal(sess.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	answers, err := json.Marshal(sess.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO interview_sessions (id, owner_id, subject, difficulty, questions, answers,
			summary, started_at, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sess.ID, sess.OwnerID, string(sess.Subject), string(sess.Difficulty),
		questions, answers, sess.Summary, sess.StartedAt, sess.CompletedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert interview session: %w", err)
	}
	return nil
}

// GetInterviewSession retrieves one of the owner's sessions.
func (s *InterviewStore) GetInterviewSession(ctx context.Context, ownerID, id string) (*domain.InterviewSession, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	row := s.db.QueryRow(ctx,
		`SELECT `+interviewColumns+` FROM interview_sessions WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return scanInterview(row)
}

// UpdateInterviewAnswers replaces the whole answers array of an unfinished
// session. The last write wins.
func (s *InterviewStore) UpdateInterviewAnswers(ctx context.Context, ownerID, id string, answers []string) error {
	if !validID(id) {
		return fmt.Errorf("update answers %s: %w", id, domain.ErrNotFound)
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE interview_sessions SET answers = $1, updated_at = $2
		WHERE id = $3 AND owner_id = $4 AND completed_at IS NULL`,
		data, time.Now().UTC(), id, ownerID)
	if err != nil {
		return fmt.Errorf("update answers: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update answers %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CompleteInterviewSession stores the graded questions, the summary and the
// completion stamp in one transaction. The row is locked while checked.
func (s *InterviewStore) CompleteInterviewSession(ctx context.Context, ownerID, id string, graded []domain.Question, summary string, completedAt time.Time) error {
	for i, q := range graded {
		if !q.Graded() {
			return fmt.Errorf("%w: question %d has no grading fields", domain.ErrInvalidInput, i)
		}
	}
	if !validID(id) {
		return fmt.Errorf("complete session %s: %w", id, domain.ErrNotFound)
	}
	questions, err := json.Marshal(graded)
	if err != nil {
		return fmt.Errorf("marshal graded questions: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var completed *time.Time
	var count int
	err = tx.QueryRow(ctx, `
		SELECT completed_at, jsonb_array_length(answers) FROM interview_sessions
		WHERE id = $1 AND owner_id = $2 FOR UPDATE`, id, ownerID).Scan(&completed, &count)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("complete session %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if completed != nil {
		return fmt.Errorf("complete session %s: %w", id, domain.ErrTerminal)
	}
	if count != len(graded) {
		return fmt.Errorf("%w: %d graded questions for %d answers", domain.ErrInvalidInput, len(graded), count)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE interview_sessions
		SET questions = $1, summary = $2, completed_at = $3, updated_at = $4
		WHERE id = $5 AND owner_id = $6`,
		questions, summary, completedAt.UTC(), time.Now().UTC(), id, ownerID); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit completion: %w", err)
	}
	return nil
}

// DeleteInterviewSession removes a session permanently.
func (s *InterviewStore) DeleteInterviewSession(ctx context.Context, ownerID, id string) error {
	if !validID(id) {
		return fmt.Errorf("delete session %s: %w", id, domain.ErrNotFound)
	}
	tag, err := s.db.Exec(ctx, "DELETE FROM interview_sessions WHERE id = $1 AND owner_id = $2", id, ownerID)
	if err != nil {
		return fmt.Errorf("delete interview session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete session %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListInterviewSessions returns the owner's sessions, newest first.
func (s *InterviewStore) ListInterviewSessions(ctx context.Context, ownerID string) ([]*domain.InterviewSession, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+interviewColumns+` FROM interview_sessions WHERE owner_id = $1 ORDER BY started_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list interview sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.InterviewSession
	for rows.Next() {
		sess, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func scanInterview(row pgx.Row) (*domain.InterviewSession, error) {
	var sess domain.InterviewSession
	var subject, difficulty string
	var questionsJSON, answersJSON []byte
	var completedAt *time.Time

	err := row.Scan(&sess.ID, &sess.OwnerID, &subject, &difficulty,
		&questionsJSON, &answersJSON, &sess.Summary, &sess.StartedAt, &completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan interview session: %w", err)
	}

	sess.Subject = domain.Subject(subject)
	sess.Difficulty = domain.Difficulty(difficulty)
	if err := json.Unmarshal(questionsJSON, &sess.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	if err := json.Unmarshal(answersJSON, &sess.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	if completedAt != nil {
		t := completedAt.UTC()
		sess.CompletedAt = &t
	}
	sess.StartedAt = sess.StartedAt.UTC()
	return &sess, nil
}

// validID reports whether id can address a UUID column. Anything else
// cannot match a row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
