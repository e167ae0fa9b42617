// Package grading turns finished interview transcripts into structured
// feedback and parses generated question sets.
package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/generation"
	"github.com/felixgeelhaar/mentora/internal/llm"
	"github.com/felixgeelhaar/mentora/internal/prompt"
)

// Grade is the parsed grading reply. Feedback is index-aligned with the
// graded questions.
type Grade struct {
	Feedback []domain.Feedback `json:"feedback"`
	Summary  string            `json:"summary"`
}

// Grader grades a transcript with one blocking generation call. Shape
// failures are not retried.
type Grader struct {
	gen    generation.Generator
	logger *slog.Logger
}

// NewGrader creates a grader.
func NewGrader(gen generation.Generator, logger *slog.Logger) *Grader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grader{gen: gen, logger: logger}
}

// Grade requests feedback for every question. Missing answers are padded
// with blanks so a short answer list never fails grading.
func (g *Grader) Grade(ctx context.Context, questions, answers []string, difficulty domain.Difficulty) (*Grade, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: questions are required", domain.ErrInvalidInput)
	}
	if difficulty == "" {
		return nil, fmt.Errorf("%w: difficulty is required", domain.ErrInvalidInput)
	}

	padded := lo.Map(questions, func(_ string, i int) string {
		if i < len(answers) {
			return answers[i]
		}
		return ""
	})

	text, err := g.gen.Complete(ctx, generation.Call{Prompt: prompt.Grading(questions, padded, difficulty)})
	if err != nil {
		return nil, fmt.Errorf("grade answers: %w", err)
	}

	var grade Grade
	if err := llm.DecodeStructured(gradeSchema, text, &grade); err != nil {
		return nil, g.shapeError(text, err)
	}
	if len(grade.Feedback) != len(questions) {
		return nil, g.shapeError(text, fmt.Errorf("got %d feedback entries for %d questions", len(grade.Feedback), len(questions)))
	}

	return &grade, nil
}

func (g *Grader) shapeError(raw string, reason error) error {
	var se *llm.ShapeError
	if errors.As(reason, &se) {
		reason = se.Err
	}
	g.logger.Warn("malformed grading response", "error", reason, "raw", raw)
	return &ShapeError{Target: ErrMalformedGrade, Raw: raw, Reason: reason}
}

// ParseQuestions parses a generated question set. Exactly
// domain.QuestionCount entries are required.
func ParseQuestions(text string) ([]domain.Question, error) {
	var raw []domain.Question
	if err := llm.DecodeStructured(questionsSchema, text, &raw); err != nil {
		var se *llm.ShapeError
		reason := err
		if errors.As(err, &se) {
			reason = se.Err
		}
		return nil, &ShapeError{Target: ErrMalformedQuestions, Raw: text, Reason: reason}
	}
	if len(raw) != domain.QuestionCount {
		return nil, &ShapeError{
			Target: ErrMalformedQuestions,
			Raw:    text,
			Reason: fmt.Errorf("got %d questions, want %d", len(raw), domain.QuestionCount),
		}
	}

	return lo.Map(raw, func(q domain.Question, _ int) domain.Question {
		return domain.Question{
			Text:       strings.TrimSpace(q.Text),
			Difficulty: domain.Difficulty(strings.ToLower(string(q.Difficulty))),
		}
	}), nil
}
