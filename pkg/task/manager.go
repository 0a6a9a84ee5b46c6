package task

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/async"
)

// Outcome labels how a tracked task settled.
type Outcome string

const (
	OutcomeResolved Outcome = "resolved"
	OutcomeRejected Outcome = "rejected"
	OutcomeCanceled Outcome = "canceled"
)

type tracked interface {
	Cancel()
}

// Manager tracks cancelable tasks. Safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	nextID  uint64
	tasks   map[uint64]tracked
	logger  *slog.Logger
	metrics *metrics
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for task bookkeeping and polling errors.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager with no tracked tasks.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		tasks:  make(map[uint64]tracked),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Pin wraps src in a Cancelable and tracks it until it settles.
func Pin[T any](m *Manager, src async.Awaitable[T]) *async.Cancelable[T] {
	c := async.Wrap(src)
	id := m.track(c)

	go func() {
		<-c.Done()
		_, err, _ := c.Result()
		m.untrack(id, outcomeOf(err))
	}()
	return c
}

// PinFunc starts fn on its own goroutine and pins the result.
func PinFunc[T any](ctx context.Context, m *Manager, fn func(ctx context.Context) (T, error)) *async.Cancelable[T] {
	return Pin[T](m, async.Go(ctx, fn))
}

func outcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeResolved
	case async.IsCanceled(err):
		return OutcomeCanceled
	default:
		return OutcomeRejected
	}
}

func (m *Manager) track(t tracked) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.tasks[m.nextID] = t
	m.metrics.setInflight(len(m.tasks))
	return m.nextID
}

func (m *Manager) untrack(id uint64, outcome Outcome) {
	m.mu.Lock()
	delete(m.tasks, id)
	m.metrics.setInflight(len(m.tasks))
	m.mu.Unlock()

	m.metrics.settled(outcome)
	m.logger.Debug("Task settled", "task", id, "outcome", outcome)
}

// Len reports how many tasks are still tracked.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// CancelAll cancels every tracked task and clears the tracked set.
// Tasks that already settled are not affected.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	pending := m.tasks
	m.tasks = make(map[uint64]tracked)
	m.metrics.setInflight(0)
	m.mu.Unlock()

	if len(pending) > 0 {
		m.logger.Info("Cancelling tracked tasks", "count", len(pending))
	}
	for _, t := range pending {
		t.Cancel()
	}
}
