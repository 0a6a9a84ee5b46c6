package middleware

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/weft/internal/logging"
	"github.com/mohae/deepcopy"
)

// RejectFunc aborts the running pipeline.
type RejectFunc func()

// Func is one pipeline stage. It returns the replacement candidate and true,
// or false to keep the current candidate.
type Func[C, P any] func(candidate C, prev P, reject RejectFunc) (C, bool)

// CloneFunc produces an independent copy of a value.
type CloneFunc func(v any) any

// DeepCopy is the default CloneFunc.
func DeepCopy(v any) any {
	return deepcopy.Copy(v)
}

// Option configures a Manager or a single Process call.
type Option func(*config)

type config struct {
	clone  CloneFunc
	logger *slog.Logger
}

// WithClone replaces the clone function applied to the inputs of Process.
func WithClone(clone CloneFunc) Option {
	return func(c *config) {
		if clone != nil {
			c.clone = clone
		}
	}
}

// WithLogger sets the logger used to report middleware panics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

type entry[C, P any] struct {
	id uint64
	fn Func[C, P]
}

// Manager holds an ordered list of middlewares over candidates of type C and
// previous values of type P. Safe for concurrent use.
type Manager[C, P any] struct {
	mu      sync.Mutex
	nextID  uint64
	entries []entry[C, P]
	cfg     config
}

// NewManager creates an empty Manager.
func NewManager[C, P any](opts ...Option) *Manager[C, P] {
	cfg := config{clone: DeepCopy, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Manager[C, P]{cfg: cfg}
}

// Use appends fn and returns a function removing this registration.
// The remover is idempotent and does nothing after Clear.
func (m *Manager[C, P]) Use(fn Func[C, P]) (remove func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.entries = append(m.entries, entry[C, P]{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, e := range m.entries {
			if e.id == id {
				m.entries = append(m.entries[:i:i], m.entries[i+1:]...)
				return
			}
		}
	}
}

// Len reports the number of registered middlewares.
func (m *Manager[C, P]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Clear removes every middleware.
func (m *Manager[C, P]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
}

// Process runs the pipeline over copies of candidate and prev. ok is false when
// a middleware rejected, in which case the caller must not apply any update.
func (m *Manager[C, P]) Process(candidate C, prev P, opts ...Option) (result C, ok bool) {
	cfg := m.cfg
	for _, opt := range opts {
		opt(&cfg)
	}

	m.mu.Lock()
	stages := make([]entry[C, P], len(m.entries))
	copy(stages, m.entries)
	m.mu.Unlock()

	current := cloneAs(cfg, candidate)
	clonedPrev := cloneAs(cfg, prev)

	rejected := false
	reject := func() { rejected = true }

	for _, stage := range stages {
		next, replaced := m.run(cfg, stage, current, clonedPrev, reject)
		if rejected {
			var zero C
			return zero, false
		}
		if replaced {
			current = next
		}
	}
	return current, true
}

func (m *Manager[C, P]) run(cfg config, stage entry[C, P], candidate C, prev P, reject RejectFunc) (next C, replaced bool) {
	defer func() {
		if r := recover(); r != nil {
			cfg.logger.Error("Middleware panicked",
				"middleware", stage.id,
				"panic", fmt.Sprint(r),
			)
			replaced = false
		}
	}()
	return stage.fn(candidate, prev, reject)
}

func cloneAs[T any](cfg config, v T) T {
	raw := cfg.clone(v)
	if raw == nil {
		// Nil interfaces and pointers come back untyped.
		var zero T
		return zero
	}
	cloned, ok := raw.(T)
	if !ok {
		cfg.logger.Warn("Clone returned a different type, using original value",
			"type", fmt.Sprintf("%T", v),
		)
		return v
	}
	return cloned
}
