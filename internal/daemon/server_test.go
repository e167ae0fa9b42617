package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/mentora/internal/app"
	"github.com/felixgeelhaar/mentora/internal/config"
	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/generation"
	"github.com/felixgeelhaar/mentora/internal/grading"
	"github.com/felixgeelhaar/mentora/internal/interview"
	"github.com/felixgeelhaar/mentora/internal/lesson"
	"github.com/felixgeelhaar/mentora/internal/llm"
	"github.com/felixgeelhaar/mentora/internal/storage/sqlite"
	"github.com/felixgeelhaar/mentora/internal/study"
)

const testPersona = "dsa-narayanan"

// scriptedProvider replays canned completions in order and streams a fixed
// set of chunks. When gate is set the stream pauses after its first chunk.
type scriptedProvider struct {
	mu      sync.Mutex
	replies []string
	chunks  []string
	gate    chan struct{}
}

func (p *scriptedProvider) Name() string            { return "scripted" }
func (p *scriptedProvider) SupportsStreaming() bool { return true }

func (p *scriptedProvider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return &llm.Response{Content: reply}, nil
}

func (p *scriptedProvider) GenerateStream(ctx context.Context, req *llm.Request) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for i, c := range p.chunks {
			if i == 1 && p.gate != nil {
				select {
				case <-p.gate:
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- llm.StreamChunk{Content: c}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case ch <- llm.StreamChunk{Done: true}:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

func (p *scriptedProvider) push(replies ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, replies...)
}

func questionsJSON(n int, difficulty string) string {
	entries := make([]string, n)
	for i := range entries {
		entries[i] = fmt.Sprintf(`{"question":"Question %d?","difficulty":%q}`, i, difficulty)
	}
	return "[" + strings.Join(entries, ",") + "]"
}

func feedbackJSON(n int) string {
	entries := make([]string, n)
	for i := range entries {
		entries[i] = fmt.Sprintf(`{"good":"Point %d","missing":"Gap %d"}`, i, i)
	}
	return fmt.Sprintf(`{"feedback":[%s],"summary":"Solid fundamentals."}`, strings.Join(entries, ","))
}

func setupTestServer(t *testing.T, p *scriptedProvider) *Server {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "mentora.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	studyStore := sqlite.NewStudyStore(db)
	stores := app.Stores{
		Interviews: sqlite.NewInterviewStore(db),
		Study:      studyStore,
		Personas:   studyStore,
		Lessons:    sqlite.NewLessonCache(db),
		Events:     sqlite.NewEventLog(db),
	}

	cfg := config.DefaultLocalConfig()
	a := app.NewWithStores(cfg, stores, p)
	t.Cleanup(a.Close)

	s, err := NewServer(ServerConfig{Config: cfg, App: a})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return s
}

func do(t *testing.T, s *Server, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestNewServer_RequiresApp(t *testing.T) {
	if _, err := NewServer(ServerConfig{Config: config.DefaultLocalConfig()}); err == nil {
		t.Error("NewServer() without app should fail")
	}
}

func TestHandleHealth(t *testing.T) {
	s := setupTestServer(t, &scriptedProvider{})

	rec := do(t, s, http.MethodGet, "/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}
	if rec.Header().Get(CorrelationIDHeader) == "" {
		t.Error("correlation id header missing")
	}
}

func TestHandleStatus(t *testing.T) {
	s := setupTestServer(t, &scriptedProvider{})

	rec := do(t, s, http.MethodGet, "/v1/status", "", nil)
	body := decodeBody[map[string]any](t, rec)
	if body["version"] != Version {
		t.Errorf("version = %v", body["version"])
	}
	if body["storage"] != config.DriverSQLite {
		t.Errorf("storage = %v", body["storage"])
	}
}

func TestHandleGenerateQuestions(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		body       any
		wantStatus int
	}{
		{
			name:       "valid set",
			reply:      questionsJSON(domain.QuestionCount, "Easy"),
			body:       map[string]string{"type": "dsa", "difficulty": "easy"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing difficulty",
			body:       map[string]string{"type": "dsa"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrong count",
			reply:      questionsJSON(3, "easy"),
			body:       map[string]string{"type": "dsa", "difficulty": "easy"},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "not json",
			reply:      "Sure! Here are some questions.",
			body:       map[string]string{"type": "dsa", "difficulty": "easy"},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedProvider{}
			if tt.reply != "" {
				p.push(tt.reply)
			}
			s := setupTestServer(t, p)

			rec := do(t, s, http.MethodPost, "/v1/generate-questions", "", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d; want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				body := decodeBody[struct {
					Questions []domain.Question `json:"questions"`
				}](t, rec)
				if len(body.Questions) != domain.QuestionCount {
					t.Errorf("questions = %d", len(body.Questions))
				}
				if body.Questions[0].Difficulty != domain.DifficultyEasy {
					t.Errorf("difficulty = %q; want normalized", body.Questions[0].Difficulty)
				}
			}
			if tt.wantStatus == http.StatusBadGateway && strings.Contains(rec.Body.String(), "Question") {
				t.Error("provider output leaked into error body")
			}
		})
	}
}

func TestHandleGradeAnswers(t *testing.T) {
	p := &scriptedProvider{}
	p.push(feedbackJSON(2))
	s := setupTestServer(t, p)

	rec := do(t, s, http.MethodPost, "/v1/grade-answers", "", map[string]any{
		"questions":  []string{"What is a heap?", "What is a trie?"},
		"answers":    []string{"A tree"},
		"difficulty": "medium",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	grade := decodeBody[grading.Grade](t, rec)
	if len(grade.Feedback) != 2 || grade.Summary == "" {
		t.Errorf("grade = %+v", grade)
	}

	rec = do(t, s, http.MethodPost, "/v1/grade-answers", "", map[string]any{"difficulty": "easy"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty questions status = %d; want 400", rec.Code)
	}
}

func TestHandleLesson_UnknownPersona(t *testing.T) {
	s := setupTestServer(t, &scriptedProvider{})

	rec := do(t, s, http.MethodPost, "/v1/lessons", "", map[string]any{
		"query":     "teach me",
		"topic":     "Arrays",
		"personaId": "nobody",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d; want 404 (%s)", rec.Code, rec.Body.String())
	}
}

func TestHandleInvalidJSON(t *testing.T) {
	s := setupTestServer(t, &scriptedProvider{})

	req := httptest.NewRequest(http.MethodPost, "/v1/generate-questions", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d; want 400", rec.Code)
	}
}

func TestInterviewRoutes_RequireUser(t *testing.T) {
	s := setupTestServer(t, &scriptedProvider{})

	for _, path := range []string{"/v1/interviews", "/v1/study/" + testPersona, "/v1/events"} {
		rec := do(t, s, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d; want 401", path, rec.Code)
		}
	}
}

func TestInterviewLifecycle(t *testing.T) {
	p := &scriptedProvider{}
	p.push(questionsJSON(domain.QuestionCount, "medium"), feedbackJSON(domain.QuestionCount))
	s := setupTestServer(t, p)

	rec := do(t, s, http.MethodPost, "/v1/interviews", "user-1", map[string]string{"type": "dsa", "difficulty": "medium"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", rec.Code, rec.Body.String())
	}
	snap := decodeBody[interview.Snapshot](t, rec)
	if snap.State != interview.StateReady || snap.Session == nil {
		t.Fatalf("created snapshot = %+v", snap)
	}
	id := snap.Session.ID
	eventsPath := "/v1/interviews/" + id + "/events"

	steps := []struct {
		event      map[string]any
		wantStatus int
		wantState  interview.State
	}{
		{map[string]any{"type": "answer", "text": "too early"}, http.StatusConflict, ""},
		{map[string]any{"type": "start"}, http.StatusOK, interview.StateAnswering},
		{map[string]any{"type": "answer", "text": "Use a hash map"}, http.StatusOK, interview.StateAnswering},
		{map[string]any{"type": "navigate", "index": 99}, http.StatusBadRequest, ""},
		{map[string]any{"type": "navigate", "index": 1}, http.StatusOK, interview.StateAnswering},
		{map[string]any{"type": "pause"}, http.StatusOK, interview.StateAnswering},
		{map[string]any{"type": "bogus"}, http.StatusBadRequest, ""},
		{map[string]any{"type": "finish"}, http.StatusOK, interview.StateResults},
		{map[string]any{"type": "start"}, http.StatusConflict, ""},
	}
	for i, step := range steps {
		rec := do(t, s, http.MethodPost, eventsPath, "user-1", step.event)
		if rec.Code != step.wantStatus {
			t.Fatalf("step %d (%v): status = %d; want %d (%s)", i, step.event, rec.Code, step.wantStatus, rec.Body.String())
		}
		if step.wantState != "" {
			got := decodeBody[interview.Snapshot](t, rec)
			if got.State != step.wantState {
				t.Fatalf("step %d: state = %q; want %q", i, got.State, step.wantState)
			}
		}
	}

	rec = do(t, s, http.MethodGet, "/v1/interviews/"+id, "user-1", nil)
	got := decodeBody[interview.Snapshot](t, rec)
	if got.Session.Answers[0] != "Use a hash map" || got.Session.Summary == nil || got.Session.Questions[0].Good == nil {
		t.Errorf("completed session = %+v", got.Session)
	}

	rec = do(t, s, http.MethodGet, "/v1/interviews/"+id, "user-2", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("other owner status = %d; want 404", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/v1/interviews", "user-1", nil)
	list := decodeBody[struct {
		Sessions []domain.InterviewSession `json:"sessions"`
	}](t, rec)
	if len(list.Sessions) != 1 {
		t.Errorf("sessions = %d; want 1", len(list.Sessions))
	}

	rec = do(t, s, http.MethodDelete, "/v1/interviews/"+id, "user-1", nil)
	if rec.Code != http.StatusPreconditionRequired {
		t.Errorf("unconfirmed delete status = %d; want 428", rec.Code)
	}
	rec = do(t, s, http.MethodDelete, "/v1/interviews/"+id+"?confirm=true", "user-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d (%s)", rec.Code, rec.Body.String())
	}
	rec = do(t, s, http.MethodGet, "/v1/interviews/"+id, "user-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d; want 404", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/v1/events?type="+string(domain.EventInterviewCompleted), "user-1", nil)
	events := decodeBody[struct {
		Events []domain.LifecycleEvent `json:"events"`
	}](t, rec)
	if len(events.Events) != 1 || events.Events[0].SessionID != id {
		t.Errorf("completed events = %+v", events.Events)
	}
}

func TestHandleCreateInterview_GenerationFailure(t *testing.T) {
	s := setupTestServer(t, &scriptedProvider{})

	rec := do(t, s, http.MethodPost, "/v1/interviews", "user-1", map[string]string{"type": "dsa", "difficulty": "easy"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d; want 502 (%s)", rec.Code, rec.Body.String())
	}
}

func TestHandleListEvents_BadQuery(t *testing.T) {
	s := setupTestServer(t, &scriptedProvider{})

	for _, q := range []string{"since=yesterday", "limit=0", "limit=abc"} {
		rec := do(t, s, http.MethodGet, "/v1/events?"+q, "user-1", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d; want 400", q, rec.Code)
		}
	}
}

func TestStudyRoutes(t *testing.T) {
	s := setupTestServer(t, &scriptedProvider{chunks: []string{"Hello", " there"}})
	base := "/v1/study/" + testPersona

	rec := do(t, s, http.MethodGet, base, "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("open status = %d (%s)", rec.Code, rec.Body.String())
	}
	st := decodeBody[study.State](t, rec)
	if st.Mode != domain.ModeUnselected || len(st.Messages) != 1 {
		t.Fatalf("initial state = %+v", st)
	}

	rec = do(t, s, http.MethodPost, base+"/events", "user-1", map[string]any{"type": "next_step"})
	if rec.Code != http.StatusConflict {
		t.Errorf("next_step before mode status = %d; want 409", rec.Code)
	}

	rec = do(t, s, http.MethodPost, base+"/events", "user-1", map[string]any{"type": "select_mode", "mode": "advice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("select_mode status = %d (%s)", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, base+"/messages", "user-1", map[string]string{"text": "How do I start with graphs?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("message status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	stream := rec.Body.String()
	for _, want := range []string{"event: fragment\ndata: {\"text\":\"Hello\"}", "event: done"} {
		if !strings.Contains(stream, want) {
			t.Errorf("stream missing %q:\n%s", want, stream)
		}
	}

	rec = do(t, s, http.MethodGet, base+"/transcript", "user-1", nil)
	transcript := decodeBody[struct {
		Messages []domain.TranscriptMessage `json:"messages"`
	}](t, rec)
	found := false
	for _, m := range transcript.Messages {
		if m.Role == domain.RoleAssistant && m.Content == "Hello there" {
			found = true
		}
	}
	if !found {
		t.Errorf("transcript missing streamed reply: %+v", transcript.Messages)
	}

	rec = do(t, s, http.MethodPost, base+"/events", "user-1", map[string]any{"type": "reset"})
	if rec.Code != http.StatusPreconditionRequired {
		t.Errorf("unconfirmed reset status = %d; want 428", rec.Code)
	}
	rec = do(t, s, http.MethodPost, base+"/events", "user-1", map[string]any{"type": "reset", "confirmed": true})
	st = decodeBody[study.State](t, rec)
	if st.Mode != domain.ModeUnselected || len(st.Messages) != 1 {
		t.Errorf("state after reset = %+v", st)
	}
}

func TestHandleStudyMessage_ClientDisconnectKeepsReply(t *testing.T) {
	provider := &scriptedProvider{chunks: []string{"Start with", " adjacency lists."}, gate: make(chan struct{})}
	s := setupTestServer(t, provider)
	base := "/v1/study/" + testPersona

	rec := do(t, s, http.MethodPost, base+"/events", "user-1", map[string]any{"type": "select_mode", "mode": "advice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("select_mode status = %d (%s)", rec.Code, rec.Body.String())
	}

	disconnected := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/messages") {
			go func() {
				<-r.Context().Done()
				close(disconnected)
			}()
		}
		s.Handler().ServeHTTP(w, r)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+base+"/messages", strings.NewReader(`{"text":"How do I store a graph?"}`))
	req.Header.Set(UserIDHeader, "user-1")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}

	// read up to the first fragment, then walk away
	buf := make([]byte, 512)
	var got strings.Builder
	for !strings.Contains(got.String(), "Start with") {
		n, err := resp.Body.Read(buf)
		got.Write(buf[:n])
		if err != nil {
			t.Fatalf("read stream: %v (%q)", err, got.String())
		}
	}
	cancel()
	resp.Body.Close()

	select {
	case <-disconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("server never observed the disconnect")
	}
	close(provider.gate)

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec := do(t, s, http.MethodGet, base+"/transcript", "user-1", nil)
		transcript := decodeBody[struct {
			Messages []domain.TranscriptMessage `json:"messages"`
		}](t, rec)
		var replies []string
		for _, m := range transcript.Messages {
			if m.Role == domain.RoleAssistant {
				replies = append(replies, m.Content)
			}
		}
		if len(replies) > 0 {
			if replies[len(replies)-1] != "Start with adjacency lists." {
				t.Fatalf("saved reply = %q; want the full reply", replies[len(replies)-1])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("reply was never saved after the client disconnected")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleStudyMessage_Rejections(t *testing.T) {
	s := setupTestServer(t, &scriptedProvider{})
	base := "/v1/study/" + testPersona

	rec := do(t, s, http.MethodPost, base+"/messages", "user-1", map[string]string{"text": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty text status = %d; want 400", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/v1/study/nobody/messages", "user-1", map[string]string{"text": "hi"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown persona status = %d; want 404", rec.Code)
	}

	// mode not chosen yet: the stream opens and reports the conflict
	rec = do(t, s, http.MethodPost, base+"/messages", "user-1", map[string]string{"text": "hi"})
	if !strings.Contains(rec.Body.String(), "event: error") || !strings.Contains(rec.Body.String(), `"status":409`) {
		t.Errorf("stream = %q", rec.Body.String())
	}
}

func TestHandleListTopics(t *testing.T) {
	s := setupTestServer(t, &scriptedProvider{})

	rec := do(t, s, http.MethodGet, "/v1/topics?subject=dsa&level=beginner", "", nil)
	body := decodeBody[struct {
		Topics []string `json:"topics"`
	}](t, rec)
	if len(body.Topics) == 0 || body.Topics[0] != "Arrays" {
		t.Errorf("topics = %v", body.Topics)
	}

	rec = do(t, s, http.MethodGet, "/v1/topics?subject=dsa&level=expert", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad level status = %d; want 400", rec.Code)
	}
}

func TestHandleListPersonas(t *testing.T) {
	s := setupTestServer(t, &scriptedProvider{})

	rec := do(t, s, http.MethodGet, "/v1/personas", "", nil)
	body := decodeBody[struct {
		Personas []domain.Persona `json:"personas"`
	}](t, rec)
	if len(body.Personas) == 0 {
		t.Error("expected seeded personas")
	}
}

func TestKnowledgeRoutes_Unconfigured(t *testing.T) {
	s := setupTestServer(t, &scriptedProvider{})

	rec := do(t, s, http.MethodGet, "/v1/knowledge/stats", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d; want 503", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("x: %w", domain.ErrInvalidInput), http.StatusBadRequest},
		{"confirmation", domain.ErrConfirmationRequired, http.StatusPreconditionRequired},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"persona", domain.ErrPersonaNotFound, http.StatusNotFound},
		{"busy", domain.ErrBusy, http.StatusConflict},
		{"transition", domain.ErrInvalidTransition, http.StatusConflict},
		{"terminal", domain.ErrTerminal, http.StatusConflict},
		{"shape", &grading.ShapeError{Target: grading.ErrMalformedGrade, Raw: "junk"}, http.StatusBadGateway},
		{"lesson", lesson.ErrMalformedLesson, http.StatusBadGateway},
		{"provider", &generation.Error{Kind: generation.KindProvider, Err: errors.New("500")}, http.StatusBadGateway},
		{"request rejected", &generation.Error{Kind: generation.KindInvalidInput, Err: errors.New("400")}, http.StatusBadRequest},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := statusFor(tt.err)
			if got != tt.want {
				t.Errorf("statusFor() = %d; want %d", got, tt.want)
			}
			if strings.Contains(msg, "junk") {
				t.Error("raw model output leaked")
			}
		})
	}
}
