package query

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/async"
	"github.com/aretw0/weft/pkg/store"
)

// DefaultDebounce is the coalescing window used unless configured otherwise.
const DefaultDebounce = 500 * time.Millisecond

// ErrDisposed is returned to callers still waiting on a debounced call when
// the Manager is disposed.
var ErrDisposed = errors.New("query manager disposed")

// Func performs the query.
type Func[A, T any] func(ctx context.Context, args A) (T, error)

// Option configures a Manager.
type Option func(*options)

type options struct {
	debounce time.Duration
	logger   *slog.Logger
}

// WithDebounce sets the coalescing window. Zero or less disables debouncing.
func WithDebounce(window time.Duration) Option {
	return func(o *options) {
		o.debounce = window
	}
}

// WithoutDebounce makes Fetch and Refetch invoke the query immediately.
func WithoutDebounce() Option {
	return WithDebounce(0)
}

// WithLogger sets the logger for query failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Manager owns the State of one query.
type Manager[A, T any] struct {
	fn     Func[A, T]
	store  *store.Store[State[T]]
	logger *slog.Logger

	runMu    sync.Mutex // invocations never overlap
	argsMu   sync.Mutex
	lastArgs *A

	fetchDebounce   *debouncer[A]
	refetchDebounce *debouncer[struct{}]
}

// New creates a Manager for fn.
func New[A, T any](fn Func[A, T], opts ...Option) *Manager[A, T] {
	o := options{debounce: DefaultDebounce, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager[A, T]{
		fn:     fn,
		store: store.New(InitialState[T](),
			store.WithLogger[State[T]](o.logger),
			store.WithClone(shallowState[T]),
		),
		logger: o.logger,
	}
	if o.debounce > 0 {
		m.fetchDebounce = newDebouncer(o.debounce, m.fetch)
		m.refetchDebounce = newDebouncer(o.debounce, func(ctx context.Context, _ struct{}) error {
			return m.refetch(ctx)
		})
	}
	return m
}

// shallowState copies the flags and shares Data. Updates only assign Data,
// so a deep copy would gain nothing and could drop unexported fields of T.
func shallowState[T any](s State[T]) State[T] {
	return s
}

// State returns the current query state.
func (m *Manager[A, T]) State() State[T] {
	return m.store.State()
}

// Store exposes the observable container holding the state.
func (m *Manager[A, T]) Store() *store.Store[State[T]] {
	return m.store
}

// Fetch runs the query with args, toggling IsLoading and IsFetching.
func (m *Manager[A, T]) Fetch(ctx context.Context, args A) error {
	if m.fetchDebounce != nil {
		return m.fetchDebounce.call(ctx, args)
	}
	return m.fetch(ctx, args)
}

// Refetch replays the arguments of the last successful Fetch, toggling only
// IsFetching. A failure sets IsError and keeps Data; a success replaces Data
// and clears IsError, since the state then reflects a good response. Without
// a successful Fetch it does nothing.
func (m *Manager[A, T]) Refetch(ctx context.Context) error {
	if _, ok := m.recordedArgs(); !ok {
		return nil
	}
	if m.refetchDebounce != nil {
		return m.refetchDebounce.call(ctx, struct{}{})
	}
	return m.refetch(ctx)
}

// Dispose drops pending debounced calls and all state subscriptions.
func (m *Manager[A, T]) Dispose() {
	if m.fetchDebounce != nil {
		m.fetchDebounce.stop(ErrDisposed)
		m.refetchDebounce.stop(ErrDisposed)
	}
	m.store.Dispose()
}

func (m *Manager[A, T]) fetch(ctx context.Context, args A) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	m.store.Update(func(s *State[T]) {
		s.IsLoading = true
		s.IsFetching = true
	})
	defer m.store.Update(func(s *State[T]) {
		s.IsLoading = false
		s.IsFetching = false
	})

	result, err := m.invoke(ctx, args)
	if err != nil {
		m.logger.Warn("Query failed", "err", err)
		m.store.Update(func(s *State[T]) {
			s.IsError = true
		})
		return err
	}

	m.argsMu.Lock()
	m.lastArgs = &args
	m.argsMu.Unlock()

	m.store.Update(func(s *State[T]) {
		s.Data = result
		s.IsDataPending = false
		s.IsError = false
	})
	return nil
}

func (m *Manager[A, T]) refetch(ctx context.Context) error {
	args, ok := m.recordedArgs()
	if !ok {
		return nil
	}

	m.runMu.Lock()
	defer m.runMu.Unlock()

	m.store.Update(func(s *State[T]) {
		s.IsFetching = true
	})
	defer m.store.Update(func(s *State[T]) {
		s.IsFetching = false
	})

	result, err := m.invoke(ctx, args)
	if err != nil {
		m.logger.Warn("Refetch failed", "err", err)
		m.store.Update(func(s *State[T]) {
			s.IsError = true
		})
		return err
	}

	m.store.Update(func(s *State[T]) {
		s.Data = result
		s.IsError = false
	})
	return nil
}

func (m *Manager[A, T]) recordedArgs() (A, bool) {
	m.argsMu.Lock()
	defer m.argsMu.Unlock()
	if m.lastArgs == nil {
		var zero A
		return zero, false
	}
	return *m.lastArgs, true
}

func (m *Manager[A, T]) invoke(ctx context.Context, args A) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &async.PanicError{Value: r}
		}
	}()
	return m.fn(ctx, args)
}
