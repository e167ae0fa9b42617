package daemon

import (
	"context"
	"net/http"

	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/interview"
)

func (s *Server) handleCreateInterview(w http.ResponseWriter, r *http.Request) {
	var req interview.CreateRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, "create interview", err)
		return
	}
	req.OwnerID = UserID(r.Context())

	sess, err := s.interviews.Service().Create(r.Context(), req)
	if err != nil {
		s.fail(w, r, "create interview", err)
		return
	}

	machine, err := s.interviews.Open(r.Context(), req.OwnerID, sess.ID)
	if err != nil {
		s.fail(w, r, "create interview", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, machine.Snapshot())
}

func (s *Server) handleListInterviews(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.interviews.Service().List(r.Context(), UserID(r.Context()))
	if err != nil {
		s.fail(w, r, "list interviews", err)
		return
	}
	if sessions == nil {
		sessions = []*domain.InterviewSession{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	machine, err := s.interviews.Open(r.Context(), UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "get interview", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, machine.Snapshot())
}

// handleDeleteInterview removes a session from history in any state. The
// caller must pass ?confirm=true.
func (s *Server) handleDeleteInterview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	confirmed := r.URL.Query().Get("confirm") == "true"

	if err := s.interviews.Service().Delete(r.Context(), UserID(r.Context()), id, confirmed); err != nil {
		s.fail(w, r, "delete interview", err)
		return
	}
	s.interviews.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInterviewEvent(w http.ResponseWriter, r *http.Request) {
	var req interview.EventRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, "interview event", err)
		return
	}
	ev, err := req.Decode()
	if err != nil {
		s.fail(w, r, "interview event", err)
		return
	}

	snap, err := s.interviews.Dispatch(context.WithoutCancel(r.Context()), UserID(r.Context()), r.PathValue("id"), ev)
	if err != nil {
		s.fail(w, r, "interview event", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, snap)
}
