// Package app wires configuration into the running services shared by the
// daemon, the MCP server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/mentora/internal/config"
	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/generation"
	"github.com/felixgeelhaar/mentora/internal/grading"
	"github.com/felixgeelhaar/mentora/internal/interview"
	"github.com/felixgeelhaar/mentora/internal/knowledge"
	"github.com/felixgeelhaar/mentora/internal/lesson"
	"github.com/felixgeelhaar/mentora/internal/llm"
	"github.com/felixgeelhaar/mentora/internal/queue"
	"github.com/felixgeelhaar/mentora/internal/storage/postgres"
	"github.com/felixgeelhaar/mentora/internal/storage/sqlite"
	"github.com/felixgeelhaar/mentora/internal/study"
)

// EventLog is the durable lifecycle event history.
type EventLog interface {
	PublishEvent(ctx context.Context, event *domain.LifecycleEvent) error
	ListEvents(ctx context.Context, ownerID string, typ domain.EventType, since time.Time, limit int) ([]*domain.LifecycleEvent, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Personas lists the persona catalog.
type Personas interface {
	ListPersonas(ctx context.Context) ([]domain.Persona, error)
	GetPersona(ctx context.Context, id string) (*domain.Persona, error)
}

// Stores bundles one storage backend.
type Stores struct {
	Interviews interview.Store
	Study      study.Store
	Personas   Personas
	Lessons    lesson.Cache
	Events     EventLog
}

// App holds the wired services.
type App struct {
	Config     *config.LocalConfig
	Dir        string
	Registry   *llm.Registry
	Questions  *grading.Generator
	Grader     *grading.Grader
	Lessons    *lesson.Service
	Interviews *interview.Manager
	Study      *study.Service
	Knowledge  *knowledge.Service
	Stores     Stores

	closers []func()
}

// New builds every service from cfg. dir is the mentora home directory.
func New(ctx context.Context, cfg *config.LocalConfig, dir string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Dir: dir}

	registry, err := NewRegistry(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	a.Registry = registry

	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openKnowledge(ctx); err != nil {
		a.Close()
		return nil, err
	}

	provider, err := registry.Default()
	if err != nil {
		slog.Warn("no LLM provider configured; generation calls will fail", "error", err)
		provider = unavailableProvider{}
	}
	a.wire(provider)

	return a, nil
}

// NewWithStores wires the services over caller-supplied stores and
// provider. Knowledge retrieval is left unset.
func NewWithStores(cfg *config.LocalConfig, stores Stores, provider llm.Provider) *App {
	a := &App{Config: cfg, Stores: stores, Registry: llm.NewRegistry()}
	a.Registry.Register(provider.Name(), provider)
	a.wire(provider)
	return a
}

func (a *App) wire(provider llm.Provider) {
	logger := slog.Default()
	gen := generation.NewClient(provider, logger)

	a.Questions = grading.NewGenerator(gen, logger)
	a.Grader = grading.NewGrader(gen, logger)

	a.Lessons = lesson.NewService(gen, a.Stores.Lessons, logger)

	interviews := interview.NewService(a.Stores.Interviews, a.Questions, a.Grader, logger)
	interviews.SetDuration(a.Config.InterviewDuration())

	studies := study.NewService(a.Stores.Study, gen, logger)
	studies.SetLessons(a.Lessons)

	if a.Knowledge != nil {
		a.Lessons.SetRetriever(a.Knowledge.Retriever())
		studies.SetRetriever(a.Knowledge.Retriever())
	}

	publisher := a.publisher()
	if publisher != nil {
		interviews.SetPublisher(publisher)
		studies.SetPublisher(publisher)
	}

	a.Interviews = interview.NewManager(interviews, logger)
	a.Study = studies
	a.closers = append(a.closers, a.Interviews.Close)
}

func (a *App) openStorage(ctx context.Context) error {
	switch a.Config.Storage.Driver {
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, a.Config.Storage.URL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		studyStore := postgres.NewStudyStore(db)
		a.Stores = Stores{
			Interviews: postgres.NewInterviewStore(db),
			Study:      studyStore,
			Personas:   studyStore,
			Lessons:    postgres.NewLessonCache(db),
			Events:     postgres.NewEventLog(db),
		}

	default:
		db, err := openSQLite(ctx, a.Config.SQLitePath(a.Dir))
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { db.Close() })
		studyStore := sqlite.NewStudyStore(db)
		a.Stores = Stores{
			Interviews: sqlite.NewInterviewStore(db),
			Study:      studyStore,
			Personas:   studyStore,
			Lessons:    sqlite.NewLessonCache(db),
			Events:     sqlite.NewEventLog(db),
		}
	}
	return nil
}

// openKnowledge opens the reference index. It always lives in SQLite; with
// the postgres driver it gets its own file.
func (a *App) openKnowledge(ctx context.Context) error {
	path := a.Config.SQLitePath(a.Dir)
	if a.Config.Storage.Driver == config.DriverPostgres {
		path = filepath.Join(a.Dir, "knowledge.db")
	}
	db, err := openSQLite(ctx, path)
	if err != nil {
		return fmt.Errorf("open knowledge index: %w", err)
	}
	a.closers = append(a.closers, func() { db.Close() })

	var embedder knowledge.Embedder
	if a.Config.Knowledge.Embedder == "gemini" {
		key := ""
		if p, ok := a.Config.LLM.Providers["gemini"]; ok {
			key = p.APIKey
		}
		embedder, err = knowledge.NewGeminiEmbedder(ctx, key, "")
		if err != nil {
			slog.Warn("gemini embedder unavailable, using keyword embedder", "error", err)
			embedder = nil
		}
	}
	a.Knowledge = knowledge.NewService(knowledge.NewIndex(db.DB), embedder, slog.Default())
	return nil
}

// publisher prefers the AMQP queue and falls back to the event log. With a
// queue configured both receive every event.
func (a *App) publisher() interview.Publisher {
	url := a.Config.Events.AMQPURL
	if url == "" {
		if a.Stores.Events == nil {
			return nil
		}
		return a.Stores.Events
	}

	conn, err := queue.NewConnection(url)
	if err != nil {
		slog.Warn("event queue unavailable, logging events locally", "error", err)
		if a.Stores.Events == nil {
			return nil
		}
		return a.Stores.Events
	}
	a.closers = append(a.closers, func() { conn.Close() })

	producer := queue.NewProducer(conn)
	if a.Stores.Events == nil {
		return producer
	}
	return fanout{a.Stores.Events, producer}
}

// PruneEvents drops logged events older than the configured retention.
func (a *App) PruneEvents(ctx context.Context) {
	if a.Stores.Events == nil || a.Config.Events.RetentionDays <= 0 {
		return
	}
	n, err := a.Stores.Events.Prune(ctx, a.Config.EventRetention())
	if err != nil {
		slog.Warn("prune events failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("pruned lifecycle events", "count", n)
	}
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openSQLite(ctx context.Context, path string) (*sqlite.DB, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}

// fanout publishes to every publisher and joins their errors.
type fanout []interview.Publisher

func (f fanout) PublishEvent(ctx context.Context, event *domain.LifecycleEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// unavailableProvider stands in when no provider is configured so the
// daemon can still serve stored sessions.
type unavailableProvider struct{}

func (unavailableProvider) Name() string            { return "none" }
func (unavailableProvider) SupportsStreaming() bool { return false }

func (unavailableProvider) Generate(context.Context, *llm.Request) (*llm.Response, error) {
	return nil, llm.ErrNoDefaultProvider
}

func (unavailableProvider) GenerateStream(context.Context, *llm.Request) (<-chan llm.StreamChunk, error) {
	return nil, llm.ErrNoDefaultProvider
}
