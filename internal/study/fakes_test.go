package study

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/generation"
	"github.com/felixgeelhaar/mentora/internal/lesson"
	"github.com/felixgeelhaar/mentora/internal/llm"
)

const (
	testOwner   = "user-1"
	testPersona = "dsa-narayanan"
)

// memStore is an in-memory Store.
type memStore struct {
	mu         sync.Mutex
	personas   map[string]*domain.Persona
	states     map[string]*domain.StudySessionState
	transcript []domain.TranscriptMessage
	writes     int
	failWrite  error

	// slowOwner's state reads wait on slowGate.
	slowOwner string
	slowGate  chan struct{}
}

func newMemStore() *memStore {
	return &memStore{
		personas: map[string]*domain.Persona{
			testPersona: {
				ID:            testPersona,
				Name:          "Priya Narayanan",
				Subject:       "dsa",
				DisplayPrompt: "You are Priya Narayanan, a DSA educator.",
			},
		},
		states: make(map[string]*domain.StudySessionState),
	}
}

func key(ownerID, personaID string) string { return ownerID + "/" + personaID }

func (s *memStore) GetStudyState(_ context.Context, ownerID, personaID string) (*domain.StudySessionState, error) {
	if s.slowGate != nil && ownerID == s.slowOwner {
		<-s.slowGate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key(ownerID, personaID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return st.Clone(), nil
}

func (s *memStore) WriteStudyState(_ context.Context, st *domain.StudySessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failWrite != nil {
		return s.failWrite
	}
	s.states[key(st.OwnerID, st.PersonaID)] = st.Clone()
	return nil
}

func (s *memStore) AppendStudyMessage(_ context.Context, msg *domain.TranscriptMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, *msg)
	return nil
}

func (s *memStore) ListStudyMessages(_ context.Context, ownerID, personaID string) ([]domain.TranscriptMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TranscriptMessage
	for _, m := range s.transcript {
		if m.OwnerID == ownerID && m.PersonaID == personaID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) ResetStudyState(_ context.Context, ownerID, personaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key(ownerID, personaID))
	kept := s.transcript[:0]
	for _, m := range s.transcript {
		if m.OwnerID != ownerID || m.PersonaID != personaID {
			kept = append(kept, m)
		}
	}
	s.transcript = kept
	return nil
}

func (s *memStore) GetPersona(_ context.Context, id string) (*domain.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.personas[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPersonaNotFound, id)
	}
	c := *p
	return &c, nil
}

func (s *memStore) stored() *domain.StudySessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[key(testOwner, testPersona)].Clone()
}

// streamProvider is a streaming llm.Provider that replays chunks.
type streamProvider struct {
	mu       sync.Mutex
	chunks   []llm.StreamChunk
	startErr error
	gate     chan struct{}
	requests []*llm.Request
}

func (p *streamProvider) Name() string            { return "fake" }
func (p *streamProvider) SupportsStreaming() bool { return true }

func (p *streamProvider) Generate(context.Context, *llm.Request) (*llm.Response, error) {
	return nil, errors.New("not used")
}

func (p *streamProvider) GenerateStream(ctx context.Context, req *llm.Request) (<-chan llm.StreamChunk, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	chunks := append([]llm.StreamChunk(nil), p.chunks...)
	gate := p.gate
	startErr := p.startErr
	p.mu.Unlock()
	if startErr != nil {
		return nil, startErr
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return
			}
		}
		for _, c := range chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (p *streamProvider) lastRequest() *llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}

func replyChunks(parts ...string) []llm.StreamChunk {
	chunks := make([]llm.StreamChunk, 0, len(parts)+1)
	for _, p := range parts {
		chunks = append(chunks, llm.StreamChunk{Content: p})
	}
	return append(chunks, llm.StreamChunk{Done: true})
}

// fakeLessons returns a fixed plan and numbered explanations.
type fakeLessons struct {
	plan     []string
	startErr error
}

func (f *fakeLessons) Start(_ context.Context, _, _, _ string) (*lesson.Response, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &lesson.Response{LessonPlan: append([]string(nil), f.plan...), Explanation: "step 0"}, nil
}

func (f *fakeLessons) Continue(_ context.Context, _, _ string, plan []string, step int) (*lesson.Response, error) {
	resp := &lesson.Response{LessonPlan: plan, Explanation: fmt.Sprintf("explaining %s", plan[step]), CurrentStep: step}
	if step == len(plan)-1 {
		c := "Well done!"
		resp.Conclusion = &c
	}
	return resp, nil
}

type staticRetriever string

func (r staticRetriever) Retrieve(context.Context, string, string) (string, error) {
	return string(r), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.LifecycleEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, ev *domain.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func newTestService(store *memStore, provider *streamProvider) *Service {
	return NewService(store, generation.NewClient(provider, nil), nil)
}
