package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/generation"
	"github.com/felixgeelhaar/mentora/internal/prompt"
)

// Generator produces the question bank for a new interview.
type Generator struct {
	gen    generation.Generator
	logger *slog.Logger
}

// NewGenerator creates a question generator.
func NewGenerator(gen generation.Generator, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{gen: gen, logger: logger}
}

// Generate asks for a full question set for subject and difficulty.
func (g *Generator) Generate(ctx context.Context, subject domain.Subject, difficulty domain.Difficulty) ([]domain.Question, error) {
	if subject == "" || difficulty == "" {
		return nil, fmt.Errorf("%w: subject and difficulty are required", domain.ErrInvalidInput)
	}

	text, err := g.gen.Complete(ctx, generation.Call{Prompt: prompt.QuestionGeneration(subject, difficulty)})
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	questions, err := ParseQuestions(text)
	if err != nil {
		var se *ShapeError
		if errors.As(err, &se) {
			g.logger.Warn("malformed question set", "error", se.Reason, "raw", se.Raw)
		}
		return nil, err
	}

	g.logger.Info("generated questions", "subject", subject, "difficulty", difficulty, "count", len(questions))
	return questions, nil
}
