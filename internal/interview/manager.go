package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

// Manager keeps the live machines of a process, one per session, each with
// its own clock.
type Manager struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	machines map[string]*entry
}

type entry struct {
	machine *Machine
	clock   *Clock
}

// NewManager creates a manager over the given service.
func NewManager(service *Service, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		service:  service,
		interval: time.Second,
		logger:   logger,
		machines: make(map[string]*entry),
	}
}

// SetTickInterval changes the wall-clock length of one Tick.
func (m *Manager) SetTickInterval(d time.Duration) {
	m.interval = d
}

// Service returns the underlying service.
func (m *Manager) Service() *Service {
	return m.service
}

// Open returns the live machine for a session, loading it if needed.
func (m *Manager) Open(ctx context.Context, ownerID, id string) (*Machine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.machines[id]; ok {
		if e.machine.OwnerID() != ownerID {
			return nil, fmt.Errorf("get session %s: %w", id, domain.ErrNotFound)
		}
		return e.machine, nil
	}

	machine, err := m.service.Open(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	m.machines[id] = &entry{machine: machine, clock: NewClock(machine, m.interval, m.logger)}
	return machine, nil
}

// Dispatch applies an event to a live machine and keeps its clock in step
// with the running flag.
func (m *Manager) Dispatch(ctx context.Context, ownerID, id string, ev Event) (Snapshot, error) {
	machine, err := m.Open(ctx, ownerID, id)
	if err != nil {
		return Snapshot{}, err
	}

	snap, err := machine.Dispatch(ctx, ev)

	m.mu.Lock()
	e := m.machines[id]
	m.mu.Unlock()
	if e == nil {
		return snap, err
	}

	switch {
	case errors.Is(err, domain.ErrBusy), snap.State == StateGrading:
		// a submit is in flight, possibly on the clock's own goroutine
	case snap.Deleted:
		m.Forget(id)
	case snap.Running:
		// the clock outlives the request that started it
		e.clock.Start(context.WithoutCancel(ctx))
	default:
		e.clock.Stop()
	}
	return snap, err
}

// Forget stops a session's clock and drops its machine. A later Open
// reloads it from the store with a fresh timer.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	e, ok := m.machines[id]
	delete(m.machines, id)
	m.mu.Unlock()
	if ok {
		e.clock.Stop()
	}
}

// Close stops every clock.
func (m *Manager) Close() {
	m.mu.Lock()
	entries := m.machines
	m.machines = make(map[string]*entry)
	m.mu.Unlock()
	for _, e := range entries {
		e.clock.Stop()
	}
}
