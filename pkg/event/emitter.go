package event

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/weft/internal/logging"
)

// Listener receives the payload of a fired event.
type Listener[T any] func(T)

// Event registers a listener on an Emitter and returns the handle that removes it.
type Event[T any] func(listener Listener[T]) Disposable

type registration[T any] struct {
	id       uint64
	listener Listener[T]
}

// Emitter is a typed, synchronous publish/subscribe channel.
// Safe for concurrent use.
type Emitter[T any] struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []registration[T]
	logger    *slog.Logger
}

// Option configures an Emitter.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report listener panics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// NewEmitter creates an Emitter with no listeners.
func NewEmitter[T any](opts ...Option) *Emitter[T] {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Emitter[T]{logger: o.logger}
}

// Event returns the registration function of the emitter, suitable for handing
// to consumers that should be able to listen but not fire.
func (e *Emitter[T]) Event() Event[T] {
	return e.On
}

// On registers listener. Every call creates a distinct registration; disposing
// the returned handle removes exactly that registration and is idempotent.
func (e *Emitter[T]) On(listener Listener[T]) Disposable {
	if listener == nil {
		return DisposeFunc(nil)
	}

	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, registration[T]{id: id, listener: listener})
	e.mu.Unlock()

	return DisposeFunc(func() {
		e.remove(id)
	})
}

func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, reg := range e.listeners {
		if reg.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Fire invokes every listener registered at the time of the call, in
// registration order. Listeners may register or dispose during dispatch; the
// current dispatch is not affected.
func (e *Emitter[T]) Fire(data T) {
	e.mu.Lock()
	snapshot := make([]registration[T], len(e.listeners))
	copy(snapshot, e.listeners)
	e.mu.Unlock()

	for _, reg := range snapshot {
		e.call(reg, data)
	}
}

func (e *Emitter[T]) call(reg registration[T], data T) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Event listener panicked",
				"listener", reg.id,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	reg.listener(data)
}

// Len reports the number of registered listeners.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Dispose removes every listener. Safe to call more than once.
func (e *Emitter[T]) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = nil
}
