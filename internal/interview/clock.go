package interview

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

// Clock feeds Tick events into a machine while its countdown runs.
type Clock struct {
	machine  *Machine
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClock creates a stopped clock. interval is one second outside tests.
func NewClock(m *Machine, interval time.Duration, logger *slog.Logger) *Clock {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Clock{machine: m, interval: interval, logger: logger}
}

// Start launches the ticker goroutine unless it is already running. The
// clock stops on its own once the countdown is paused or the machine leaves
// answering.
func (c *Clock) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running() {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	go c.run(ctx, done)
}

// Stop cancels the ticker and waits for it to exit.
func (c *Clock) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the ticker goroutine is alive.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running()
}

func (c *Clock) running() bool {
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *Clock) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := c.machine.Dispatch(ctx, Tick{})
			if err != nil && !errors.Is(err, domain.ErrBusy) {
				c.logger.Warn("tick failed", "session_id", c.machine.ID(), "error", err)
			}
			if !snap.Running && !errors.Is(err, domain.ErrBusy) {
				return
			}
		}
	}
}
