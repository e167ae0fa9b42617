package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

// StudyStore persists study conversation state, transcript rows and the
// persona catalog.
type StudyStore struct {
	db *DB
}

// NewStudyStore creates a new SQLite-backed study store.
func NewStudyStore(db *DB) *StudyStore {
	return &StudyStore{db: db}
}

// GetStudyState returns the cached state for a pair, or ErrNotFound.
func (s *StudyStore) GetStudyState(ctx context.Context, ownerID, personaID string) (*domain.StudySessionState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT owner_id, persona_id, messages, mode, study_stage, selected_level,
			topic, lesson_plan, lesson_step, updated_at
		FROM study_states WHERE owner_id = ? AND persona_id = ?`, ownerID, personaID)

	var st domain.StudySessionState
	var messagesJSON, mode, stage, level string
	var plan sql.NullString
	err := row.Scan(&st.OwnerID, &st.PersonaID, &messagesJSON, &mode, &stage, &level,
		&st.Topic, &plan, &st.LessonStep, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan study state: %w", err)
	}

	st.Mode = domain.Mode(mode)
	st.StudyStage = domain.StudyStage(stage)
	st.SelectedLevel = domain.Level(level)
	if err := json.Unmarshal([]byte(messagesJSON), &st.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	if plan.Valid {
		if err := json.Unmarshal([]byte(plan.String), &st.LessonPlan); err != nil {
			return nil, fmt.Errorf("unmarshal lesson plan: %w", err)
		}
	}
	return &st, nil
}

// WriteStudyState replaces the cached state for the pair.
func (s *StudyStore) WriteStudyState(ctx context.Context, st *domain.StudySessionState) error {
	messages, err := json.Marshal(st.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	var plan *string
	if len(st.LessonPlan) > 0 {
		data, err := json.Marshal(st.LessonPlan)
		if err != nil {
			return fmt.Errorf("marshal lesson plan: %w", err)
		}
		p := string(data)
		plan = &p
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO study_states (owner_id, persona_id, messages, mode, study_stage,
			selected_level, topic, lesson_plan, lesson_step, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, persona_id) DO UPDATE SET
			messages=excluded.messages, mode=excluded.mode, study_stage=excluded.study_stage,
			selected_level=excluded.selected_level, topic=excluded.topic,
			lesson_plan=excluded.lesson_plan, lesson_step=excluded.lesson_step,
			updated_at=excluded.updated_at`,
		st.OwnerID, st.PersonaID, string(messages), string(st.Mode), string(st.StudyStage),
		string(st.SelectedLevel), st.Topic, plan, st.LessonStep, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert study state: %w", err)
	}
	return nil
}

// AppendStudyMessage records a durable transcript row.
func (s *StudyStore) AppendStudyMessage(ctx context.Context, msg *domain.TranscriptMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO study_messages (id, owner_id, persona_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.OwnerID, msg.PersonaID, string(msg.Role), msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert study message: %w", err)
	}
	return nil
}

// ListStudyMessages returns the transcript for a pair in insertion order.
func (s *StudyStore) ListStudyMessages(ctx context.Context, ownerID, personaID string) ([]domain.TranscriptMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, persona_id, role, content, created_at
		FROM study_messages WHERE owner_id = ? AND persona_id = ?
		ORDER BY created_at, rowid`, ownerID, personaID)
	if err != nil {
		return nil, fmt.Errorf("list study messages: %w", err)
	}
	defer rows.Close()

	var out []domain.TranscriptMessage
	for rows.Next() {
		var m domain.TranscriptMessage
		var role string
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.PersonaID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan study message: %w", err)
		}
		m.Role = domain.Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ResetStudyState deletes every transcript row and the cached state for the
// pair.
func (s *StudyStore) ResetStudyState(ctx context.Context, ownerID, personaID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM study_messages WHERE owner_id = ? AND persona_id = ?", ownerID, personaID); err != nil {
		return fmt.Errorf("delete study messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM study_states WHERE owner_id = ? AND persona_id = ?", ownerID, personaID); err != nil {
		return fmt.Errorf("delete study state: %w", err)
	}
	return tx.Commit()
}

// GetPersona fetches a persona by ID.
func (s *StudyStore) GetPersona(ctx context.Context, id string) (*domain.Persona, error) {
	var p domain.Persona
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, subject, persona_prompt FROM personas WHERE id = ?", id).
		Scan(&p.ID, &p.Name, &p.Subject, &p.DisplayPrompt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPersonaNotFound, id)
		}
		return nil, fmt.Errorf("scan persona: %w", err)
	}
	return &p, nil
}

// ListPersonas returns every persona ordered by ID.
func (s *StudyStore) ListPersonas(ctx context.Context) ([]domain.Persona, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, subject, persona_prompt FROM personas ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	defer rows.Close()

	var out []domain.Persona
	for rows.Next() {
		var p domain.Persona
		if err := rows.Scan(&p.ID, &p.Name, &p.Subject, &p.DisplayPrompt); err != nil {
			return nil, fmt.Errorf("scan persona: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
