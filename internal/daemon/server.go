package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/mentora/internal/app"
	"github.com/felixgeelhaar/mentora/internal/config"
	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/generation"
	"github.com/felixgeelhaar/mentora/internal/grading"
	"github.com/felixgeelhaar/mentora/internal/interview"
	"github.com/felixgeelhaar/mentora/internal/knowledge"
	"github.com/felixgeelhaar/mentora/internal/lesson"
	"github.com/felixgeelhaar/mentora/internal/llm"
	"github.com/felixgeelhaar/mentora/internal/study"
)

// Version is reported by /v1/status.
const Version = "0.1.0"

// QuestionGenerator produces an interview question set.
type QuestionGenerator interface {
	Generate(ctx context.Context, subject domain.Subject, difficulty domain.Difficulty) ([]domain.Question, error)
}

// AnswerGrader grades a transcript.
type AnswerGrader interface {
	Grade(ctx context.Context, questions, answers []string, difficulty domain.Difficulty) (*grading.Grade, error)
}

// LessonTeacher serves lesson turns.
type LessonTeacher interface {
	Teach(ctx context.Context, personaPrompt string, req lesson.Request) (*lesson.Response, error)
}

// Server represents the mentora daemon HTTP server
type Server struct {
	cfg    *config.LocalConfig
	server *http.Server
	router *http.ServeMux

	llmRegistry llm.LLMRegistry
	questions   QuestionGenerator
	grader      AnswerGrader
	lessons     LessonTeacher
	interviews  *interview.Manager
	study       *study.Service
	personas    app.Personas
	events      app.EventLog
	knowledge   *knowledge.Service
	limiter     *rateLimiter
	started     time.Time
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Config *config.LocalConfig
	App    *app.App
}

// NewServer creates a new daemon server over wired services.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil || cfg.App == nil {
		return nil, errors.New("daemon: config and app are required")
	}
	a := cfg.App

	s := &Server{
		cfg:         cfg.Config,
		router:      http.NewServeMux(),
		llmRegistry: a.Registry,
		questions:   a.Questions,
		grader:      a.Grader,
		lessons:     a.Lessons,
		interviews:  a.Interviews,
		study:       a.Study,
		personas:    a.Stores.Personas,
		events:      a.Stores.Events,
		knowledge:   a.Knowledge,
		started:     time.Now(),
	}

	if n := cfg.Config.Daemon.GenerationsPerMinute; n > 0 {
		s.limiter = newRateLimiter(n, time.Minute, n)
	}

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // long for SSE replies
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return recoveryMiddleware(correlationIDMiddleware(loggingMiddleware(s.router)))
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)
	s.router.HandleFunc("GET /v1/config/providers", s.handleListProviders)

	// Stateless generation
	s.router.Handle("POST /v1/generate-questions", s.limiter.limit(http.HandlerFunc(s.handleGenerateQuestions)))
	s.router.Handle("POST /v1/grade-answers", s.limiter.limit(http.HandlerFunc(s.handleGradeAnswers)))
	s.router.Handle("POST /v1/lessons", s.limiter.limit(http.HandlerFunc(s.handleLesson)))

	// Interviews
	s.router.Handle("POST /v1/interviews", s.limiter.limit(requireUser(s.handleCreateInterview)))
	s.router.Handle("GET /v1/interviews", requireUser(s.handleListInterviews))
	s.router.Handle("GET /v1/interviews/{id}", requireUser(s.handleGetInterview))
	s.router.Handle("DELETE /v1/interviews/{id}", requireUser(s.handleDeleteInterview))
	s.router.Handle("POST /v1/interviews/{id}/events", requireUser(s.handleInterviewEvent))

	// Study
	s.router.HandleFunc("GET /v1/personas", s.handleListPersonas)
	s.router.HandleFunc("GET /v1/topics", s.handleListTopics)
	s.router.Handle("GET /v1/study/{persona}", requireUser(s.handleGetStudy))
	s.router.Handle("GET /v1/study/{persona}/transcript", requireUser(s.handleStudyTranscript))
	s.router.Handle("POST /v1/study/{persona}/events", requireUser(s.handleStudyEvent))
	s.router.Handle("POST /v1/study/{persona}/messages", s.limiter.limit(requireUser(s.handleStudyMessage)))

	// Lifecycle events
	s.router.Handle("GET /v1/events", requireUser(s.handleListEvents))

	// Knowledge
	s.router.HandleFunc("POST /v1/knowledge/index", s.handleIndexKnowledge)
	s.router.HandleFunc("GET /v1/knowledge/stats", s.handleKnowledgeStats)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting mentora daemon",
		"addr", s.server.Addr,
		"llm_providers", s.llmRegistry.List(),
		"storage", s.cfg.Storage.Driver,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")
	if s.interviews != nil {
		s.interviews.Close()
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":         "running",
		"version":        Version,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"llm_providers":  s.llmRegistry.List(),
		"storage":        s.cfg.Storage.Driver,
		"events_queue":   s.cfg.Events.AMQPURL != "",
	})
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers := make([]map[string]any, 0, len(s.cfg.LLM.Providers))
	for name, cfg := range s.cfg.LLM.Providers {
		providers = append(providers, map[string]any{
			"name":       name,
			"enabled":    cfg.Enabled,
			"model":      cfg.Model,
			"configured": cfg.APIKey != "" || name == "ollama",
		})
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"default":   s.cfg.LLM.DefaultProvider,
		"providers": providers,
	})
}

// Helper methods

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// jsonError writes {"error": message}.
func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// fail maps err to a status and a client-safe message. Generation and
// shape failures never expose provider output.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, message := statusFor(err)
	if status >= 500 {
		slog.Error(op+" failed",
			"correlation_id", GetCorrelationID(r.Context()),
			"error", err,
		)
	}
	s.jsonError(w, status, message)
}

func statusFor(err error) (int, string) {
	var shape *grading.ShapeError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrConfirmationRequired):
		return http.StatusPreconditionRequired, err.Error()
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrPersonaNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrBusy),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrTerminal):
		return http.StatusConflict, err.Error()
	case errors.As(err, &shape), errors.Is(err, lesson.ErrMalformedLesson):
		return http.StatusBadGateway, "the model returned an unusable response; please try again"
	case generation.KindOf(err) == generation.KindInvalidInput:
		return http.StatusBadRequest, "the request could not be sent to the model"
	case generation.KindOf(err) != "":
		return http.StatusBadGateway, "the model is unavailable right now; please try again"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "the request timed out"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
