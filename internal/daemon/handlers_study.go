package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/study"
)

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	personas, err := s.personas.ListPersonas(r.Context())
	if err != nil {
		s.fail(w, r, "list personas", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"personas": personas})
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	level := domain.Level(r.URL.Query().Get("level"))
	if subject == "" || !level.Valid() {
		s.fail(w, r, "list topics", fmt.Errorf("%w: subject and a valid level are required", domain.ErrInvalidInput))
		return
	}
	topics := study.Topics(subject, level)
	if topics == nil {
		topics = []string{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"topics": topics})
}

func (s *Server) handleGetStudy(w http.ResponseWriter, r *http.Request) {
	o, err := s.study.Open(r.Context(), UserID(r.Context()), r.PathValue("persona"))
	if err != nil {
		s.fail(w, r, "get study", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, o.State())
}

func (s *Server) handleStudyTranscript(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.study.Transcript(r.Context(), UserID(r.Context()), r.PathValue("persona"))
	if err != nil {
		s.fail(w, r, "study transcript", err)
		return
	}
	if msgs == nil {
		msgs = []domain.TranscriptMessage{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleStudyEvent(w http.ResponseWriter, r *http.Request) {
	var req study.EventRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, "study event", err)
		return
	}
	ev, err := req.Decode()
	if err != nil {
		s.fail(w, r, "study event", err)
		return
	}

	o, err := s.study.Open(r.Context(), UserID(r.Context()), r.PathValue("persona"))
	if err != nil {
		s.fail(w, r, "study event", err)
		return
	}
	st, err := o.Dispatch(context.WithoutCancel(r.Context()), ev)
	if err != nil {
		s.fail(w, r, "study event", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, st)
}

type studyMessageRequest struct {
	Text string `json:"text"`
}

// handleStudyMessage sends a learner message and streams the reply as
// server-sent events: "fragment" per chunk, then "done" with the final
// state or "error".
func (s *Server) handleStudyMessage(w http.ResponseWriter, r *http.Request) {
	var req studyMessageRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, "study message", err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.fail(w, r, "study message", fmt.Errorf("%w: text is required", domain.ErrInvalidInput))
		return
	}

	o, err := s.study.Open(r.Context(), UserID(r.Context()), r.PathValue("persona"))
	if err != nil {
		s.fail(w, r, "study message", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sse := &sseWriter{w: w, rc: http.NewResponseController(w), gone: r.Context().Done()}
	unsubscribe := o.Subscribe(func(u study.Update) {
		if u.Fragment != "" {
			sse.send("fragment", map[string]string{"text": u.Fragment})
		}
	})
	defer unsubscribe()

	// the reply is generated and saved even if the client disconnects
	st, err := o.Dispatch(context.WithoutCancel(r.Context()), study.Send{Text: req.Text})
	if err != nil {
		status, message := statusFor(err)
		if status >= 500 {
			slog.Error("study message failed",
				"correlation_id", GetCorrelationID(r.Context()),
				"error", err,
			)
		}
		sse.send("error", map[string]any{"error": message, "status": status, "state": st})
		return
	}
	sse.send("done", st)
}

// sseWriter serializes event writes from the listener and the handler. Once
// the client has gone it drops every event.
type sseWriter struct {
	mu   sync.Mutex
	w    http.ResponseWriter
	rc   *http.ResponseController
	gone <-chan struct{}
}

func (s *sseWriter) send(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to encode event", "event", event, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.gone:
		return
	default:
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return
	}
	_ = s.rc.Flush()
}
