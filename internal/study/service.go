// Package study runs persona tutoring conversations: mode selection, level
// and topic choice, streamed Socratic dialogue and advice answers, with the
// conversation persisted across reloads.
package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/generation"
)

// Service opens conversations and keeps one live orchestrator per
// (owner, persona) so that concurrent requests share the busy flag.
type Service struct {
	store     Store
	gen       generation.Generator
	lessons   Lessons
	retriever Retriever
	publisher Publisher
	logger    *slog.Logger

	mu    sync.Mutex
	live  map[string]*Orchestrator
	opens singleflight.Group
}

// NewService creates a study service.
func NewService(store Store, gen generation.Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		gen:    gen,
		logger: logger,
		live:   make(map[string]*Orchestrator),
	}
}

// SetLessons sets the lesson planner used when a topic is chosen.
func (s *Service) SetLessons(l Lessons) {
	s.lessons = l
}

// SetRetriever sets the expert-answer source for advice mode.
func (s *Service) SetRetriever(r Retriever) {
	s.retriever = r
}

// SetPublisher sets the lifecycle event publisher.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// Open returns the live conversation for an owner and persona, loading it
// from the store or creating the default state on first visit. Loads run
// outside the service lock; concurrent opens of one key share a single load.
func (s *Service) Open(ctx context.Context, ownerID, personaID string) (*Orchestrator, error) {
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(personaID) == "" {
		return nil, fmt.Errorf("%w: owner and persona are required", domain.ErrInvalidInput)
	}
	key := ownerID + "/" + personaID

	if o := s.lookup(key); o != nil {
		return o, nil
	}

	v, err, _ := s.opens.Do(key, func() (any, error) {
		if o := s.lookup(key); o != nil {
			return o, nil
		}
		o, fresh, err := s.load(ctx, ownerID, personaID)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if existing, ok := s.live[key]; ok {
			s.mu.Unlock()
			return existing, nil
		}
		s.live[key] = o
		s.mu.Unlock()

		if fresh {
			o.persist(ctx)
		}
		s.logger.Debug("study session opened", "owner_id", ownerID, "persona_id", personaID, "fresh", fresh)
		return o, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Orchestrator), nil
}

func (s *Service) lookup(key string) *Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[key]
}

// load reads the persona and the saved state in parallel and builds an
// orchestrator. fresh reports that no state was saved yet.
func (s *Service) load(ctx context.Context, ownerID, personaID string) (*Orchestrator, bool, error) {
	var (
		persona *domain.Persona
		state   *domain.StudySessionState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.store.GetPersona(gctx, personaID)
		if err != nil {
			return fmt.Errorf("get persona %s: %w", personaID, err)
		}
		persona = p
		return nil
	})
	g.Go(func() error {
		st, err := s.store.GetStudyState(gctx, ownerID, personaID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get study state: %w", err)
		}
		state = st
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	fresh := state == nil
	if fresh {
		state = domain.NewStudySessionState(ownerID, personaID, welcomeMessage(persona))
	}

	return &Orchestrator{
		state:     state,
		persona:   persona,
		pending:   -1,
		listeners: make(map[int]Listener),
		store:     s.store,
		gen:       s.gen,
		lessons:   s.lessons,
		retriever: s.retriever,
		publisher: s.publisher,
		logger:    s.logger,
	}, fresh, nil
}

// Transcript returns the durable transcript rows, oldest first.
func (s *Service) Transcript(ctx context.Context, ownerID, personaID string) ([]domain.TranscriptMessage, error) {
	msgs, err := s.store.ListStudyMessages(ctx, ownerID, personaID)
	if err != nil {
		return nil, fmt.Errorf("list study messages: %w", err)
	}
	return msgs, nil
}

// Forget drops a live orchestrator. The next Open reloads from the store.
func (s *Service) Forget(ownerID, personaID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, ownerID+"/"+personaID)
}
