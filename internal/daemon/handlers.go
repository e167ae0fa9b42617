package daemon

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/lesson"
)

// Generation handlers

type generateQuestionsRequest struct {
	Type       domain.Subject    `json:"type"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

func (s *Server) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	var req generateQuestionsRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, "generate questions", err)
		return
	}

	questions, err := s.questions.Generate(r.Context(), req.Type, req.Difficulty)
	if err != nil {
		s.fail(w, r, "generate questions", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"questions": questions})
}

type gradeAnswersRequest struct {
	Questions  []string          `json:"questions"`
	Answers    []string          `json:"answers"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

func (s *Server) handleGradeAnswers(w http.ResponseWriter, r *http.Request) {
	var req gradeAnswersRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, "grade answers", err)
		return
	}

	grade, err := s.grader.Grade(r.Context(), req.Questions, req.Answers, req.Difficulty)
	if err != nil {
		s.fail(w, r, "grade answers", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, grade)
}

type lessonRequest struct {
	lesson.Request
	PersonaID string `json:"personaId,omitempty"`
}

func (s *Server) handleLesson(w http.ResponseWriter, r *http.Request) {
	var req lessonRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, "lesson", err)
		return
	}

	var personaPrompt string
	if req.PersonaID != "" {
		p, err := s.personas.GetPersona(r.Context(), req.PersonaID)
		if err != nil {
			s.fail(w, r, "lesson", fmt.Errorf("get persona %s: %w", req.PersonaID, err))
			return
		}
		personaPrompt = p.DisplayPrompt
	}

	resp, err := s.lessons.Teach(r.Context(), personaPrompt, req.Request)
	if err != nil {
		s.fail(w, r, "lesson", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// Lifecycle event handlers

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var since time.Time
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.fail(w, r, "list events", fmt.Errorf("%w: since must be RFC3339", domain.ErrInvalidInput))
			return
		}
		since = t
	}

	limit := 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.fail(w, r, "list events", fmt.Errorf("%w: limit must be a positive integer", domain.ErrInvalidInput))
			return
		}
		limit = min(n, 500)
	}

	events, err := s.events.ListEvents(r.Context(), UserID(r.Context()), domain.EventType(q.Get("type")), since, limit)
	if err != nil {
		s.fail(w, r, "list events", err)
		return
	}
	if events == nil {
		events = []*domain.LifecycleEvent{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"events": events})
}

// Knowledge handlers

type indexKnowledgeRequest struct {
	Dir string `json:"dir"`
}

func (s *Server) handleIndexKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "knowledge index not configured")
		return
	}
	var req indexKnowledgeRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			s.fail(w, r, "index knowledge", err)
			return
		}
	}
	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		dir = s.cfg.Knowledge.Dir
	}
	if dir == "" {
		s.fail(w, r, "index knowledge", fmt.Errorf("%w: no knowledge directory configured", domain.ErrInvalidInput))
		return
	}

	result, err := s.knowledge.IndexDirectory(r.Context(), dir)
	if err != nil {
		s.fail(w, r, "index knowledge", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleKnowledgeStats(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "knowledge index not configured")
		return
	}
	stats, err := s.knowledge.Stats(r.Context())
	if err != nil {
		s.fail(w, r, "knowledge stats", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}
