// Package lesson produces guided lessons: a short plan of sub-topics and a
// structured explanation for each step.
package lesson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/generation"
	"github.com/felixgeelhaar/mentora/internal/llm"
	"github.com/felixgeelhaar/mentora/internal/prompt"
)

// ErrMalformedLesson wraps lesson replies with the wrong shape.
var ErrMalformedLesson = errors.New("malformed lesson response")

// Cache stores lesson responses by key.
type Cache interface {
	GetLessonCache(ctx context.Context, key string) ([]byte, error)
	PutLessonCache(ctx context.Context, key string, response []byte) error
}

// Retriever supplies reference passages for a topic.
type Retriever interface {
	Retrieve(ctx context.Context, topic, query string) (string, error)
}

// Request asks for the start of a lesson (no plan) or for one step of an
// existing plan.
type Request struct {
	Query       string   `json:"query"`
	Topic       string   `json:"topic"`
	LessonPlan  []string `json:"lessonPlan,omitempty"`
	CurrentStep int      `json:"currentStep,omitempty"`
}

// Response is one lesson turn. Conclusion is set only on the last step.
type Response struct {
	LessonPlan  []string `json:"lessonPlan"`
	Explanation string   `json:"explanation"`
	Conclusion  *string  `json:"conclusion"`
	CurrentStep int      `json:"currentStep"`
}

// Final reports whether this turn concluded the lesson.
func (r *Response) Final() bool {
	return r.Conclusion != nil
}

// reply is the generated part of a Response, which is what gets cached.
type reply struct {
	LessonPlan  []string `json:"lessonPlan,omitempty"`
	Explanation string   `json:"explanation"`
	Conclusion  *string  `json:"conclusion,omitempty"`
}

// Service generates lesson turns. Identical concurrent misses share one
// generation call.
type Service struct {
	gen       generation.Generator
	cache     Cache
	retriever Retriever
	logger    *slog.Logger
	group     singleflight.Group
}

// NewService creates a lesson service. cache may be nil.
func NewService(gen generation.Generator, cache Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gen: gen, cache: cache, logger: logger}
}

// SetRetriever sets the reference-passage source.
func (s *Service) SetRetriever(r Retriever) {
	s.retriever = r
}

// Start creates a lesson plan for query and explains its first step.
func (s *Service) Start(ctx context.Context, personaPrompt, topic, query string) (*Response, error) {
	return s.Teach(ctx, personaPrompt, Request{Query: query, Topic: topic})
}

// Continue explains step of plan. The last step also carries a conclusion.
func (s *Service) Continue(ctx context.Context, personaPrompt, topic string, plan []string, step int) (*Response, error) {
	return s.Teach(ctx, personaPrompt, Request{Topic: topic, LessonPlan: plan, CurrentStep: step})
}

// Teach handles both request shapes.
func (s *Service) Teach(ctx context.Context, personaPrompt string, req Request) (*Response, error) {
	start := len(req.LessonPlan) == 0
	subject := req.Query
	if !start {
		if req.CurrentStep < 0 || req.CurrentStep >= len(req.LessonPlan) {
			return nil, fmt.Errorf("%w: step %d outside a %d-step plan", domain.ErrInvalidInput, req.CurrentStep, len(req.LessonPlan))
		}
		subject = req.LessonPlan[req.CurrentStep]
	}
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("%w: query or sub-topic and topic are required", domain.ErrInvalidInput)
	}
	final := !start && req.CurrentStep == len(req.LessonPlan)-1

	key := cacheKey(req.Topic, subject, start, final)
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.load(ctx, key, personaPrompt, req, subject, start, final)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("lesson request shared", "key", key)
	}

	r := v.(*reply)
	resp := &Response{
		LessonPlan:  req.LessonPlan,
		Explanation: r.Explanation,
		CurrentStep: req.CurrentStep,
	}
	if start {
		resp.LessonPlan = append([]string(nil), r.LessonPlan...)
		resp.CurrentStep = 0
	}
	if final && r.Conclusion != nil {
		c := *r.Conclusion
		resp.Conclusion = &c
	}
	return resp, nil
}

func (s *Service) load(ctx context.Context, key, personaPrompt string, req Request, subject string, start, final bool) (*reply, error) {
	if cached := s.cached(ctx, key); cached != nil {
		return cached, nil
	}

	passages := s.passages(ctx, req.Topic, subject)
	var text string
	var schema *llm.Schema
	switch {
	case start:
		text = prompt.LessonStart(personaPrompt, req.Topic, subject, passages)
		schema = startSchema
	case final:
		text = prompt.LessonContinuation(personaPrompt, req.Topic, subject, passages, true)
		schema = finalStepSchema
	default:
		text = prompt.LessonContinuation(personaPrompt, req.Topic, subject, passages, false)
		schema = stepSchema
	}

	raw, err := s.gen.Complete(ctx, generation.Call{Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("generate lesson: %w", err)
	}

	var r reply
	if err := llm.DecodeStructured(schema, raw, &r); err != nil {
		s.logger.Warn("malformed lesson response", "key", key, "error", err, "raw", raw)
		return nil, fmt.Errorf("%w: %w", ErrMalformedLesson, err)
	}
	if !final {
		r.Conclusion = nil
	}

	s.store(ctx, key, &r)
	return &r, nil
}

func (s *Service) cached(ctx context.Context, key string) *reply {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.GetLessonCache(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("lesson cache read failed", "key", key, "error", err)
		}
		return nil
	}
	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		s.logger.Warn("lesson cache entry unreadable", "key", key, "error", err)
		return nil
	}
	s.logger.Debug("lesson cache hit", "key", key)
	return &r
}

func (s *Service) store(ctx context.Context, key string, r *reply) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := s.cache.PutLessonCache(ctx, key, data); err != nil {
		s.logger.Warn("lesson cache write failed", "key", key, "error", err)
	}
}

// passages fetches reference text. Retrieval is best-effort; a failure
// yields an empty context.
func (s *Service) passages(ctx context.Context, topic, query string) string {
	if s.retriever == nil {
		return ""
	}
	text, err := s.retriever.Retrieve(ctx, topic, query)
	if err != nil {
		s.logger.Warn("retrieval failed", "topic", topic, "error", err)
		return ""
	}
	return text
}

func cacheKey(topic, subject string, start, final bool) string {
	kind := "step"
	switch {
	case start:
		kind = "start"
	case final:
		kind = "final"
	}
	return strings.ToLower(strings.TrimSpace(topic)) + "|" + kind + "|" + strings.TrimSpace(subject)
}
