package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

// InterviewStore persists interview sessions. Every query is scoped by owner.
type InterviewStore struct {
	db *DB
}

// NewInterviewStore creates a new SQLite-backed interview store.
func NewInterviewStore(db *DB) *InterviewStore {
	return &InterviewStore{db: db}
}

const interviewColumns = `id, owner_id, subject, difficulty, questions, answers, summary, started_at, completed_at`

// CreateInterviewSession inserts a new, unfinished session.
func (s *InterviewStore) CreateInterviewSession(ctx context.Context, sess *domain.InterviewSession) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	questions, err := json.Marshal(sess.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	answers, err := json.Marshal(sess.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO interview_sessions (id, owner_id, subject, difficulty, questions, answers,
			summary, started_at, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.OwnerID, string(sess.Subject), string(sess.Difficulty),
		string(questions), string(answers), sess.Summary,
		sess.StartedAt, nullTime(sess.CompletedAt), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert interview session: %w", err)
	}
	return nil
}

// GetInterviewSession retrieves one of the owner's sessions.
func (s *InterviewStore) GetInterviewSession(ctx context.Context, ownerID, id string) (*domain.InterviewSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+interviewColumns+` FROM interview_sessions WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanInterview(row)
}

// UpdateInterviewAnswers replaces the whole answers array of an unfinished
// session. The last write wins.
func (s *InterviewStore) UpdateInterviewAnswers(ctx context.Context, ownerID, id string, answers []string) error {
	data, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE interview_sessions SET answers = ?, updated_at = ?
		WHERE id = ? AND owner_id = ? AND completed_at IS NULL`,
		string(data), time.Now().UTC(), id, ownerID)
	if err != nil {
		return fmt.Errorf("update answers: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("update answers %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CompleteInterviewSession stores the graded questions, the summary and the
// completion stamp in one transaction. A session is completed at most once.
func (s *InterviewStore) CompleteInterviewSession(ctx context.Context, ownerID, id string, graded []domain.Question, summary string, completedAt time.Time) error {
	for i, q := range graded {
		if !q.Graded() {
			return fmt.Errorf("%w: question %d has no grading fields", domain.ErrInvalidInput, i)
		}
	}
	questions, err := json.Marshal(graded)
	if err != nil {
		return fmt.Errorf("marshal graded questions: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var completed sql.NullTime
	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT completed_at, json_array_length(answers) FROM interview_sessions
		WHERE id = ? AND owner_id = ?`, id, ownerID).Scan(&completed, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("complete session %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if completed.Valid {
		return fmt.Errorf("complete session %s: %w", id, domain.ErrTerminal)
	}
	if count != len(graded) {
		return fmt.Errorf("%w: %d graded questions for %d answers", domain.ErrInvalidInput, len(graded), count)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE interview_sessions
		SET questions = ?, summary = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		string(questions), summary, completedAt.UTC(), time.Now().UTC(), id, ownerID); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit completion: %w", err)
	}
	return nil
}

// DeleteInterviewSession removes a session permanently.
func (s *InterviewStore) DeleteInterviewSession(ctx context.Context, ownerID, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM interview_sessions WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("delete interview session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("delete session %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListInterviewSessions returns the owner's sessions, newest first.
func (s *InterviewStore) ListInterviewSessions(ctx context.Context, ownerID string) ([]*domain.InterviewSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+interviewColumns+` FROM interview_sessions WHERE owner_id = ? ORDER BY started_at DESC, id`, ownerID)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanInterview(row scanner) (*domain.InterviewSession, error) {
	var sess domain.InterviewSession
	var subject, difficulty, questionsJSON, answersJSON string
	var summary sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&sess.ID, &sess.OwnerID, &subject, &difficulty,
		&questionsJSON, &answersJSON, &summary, &sess.StartedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan interview session: %w", err)
	}

	sess.Subject = domain.Subject(subject)
	sess.Difficulty = domain.Difficulty(difficulty)
	if err := json.Unmarshal([]byte(questionsJSON), &sess.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	if err := json.Unmarshal([]byte(answersJSON), &sess.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	if summary.Valid {
		sess.Summary = &summary.String
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		sess.CompletedAt = &t
	}
	sess.StartedAt = sess.StartedAt.UTC()
	return &sess, nil
}

// nullTime converts a *time.Time to sql.NullTime for storage.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
