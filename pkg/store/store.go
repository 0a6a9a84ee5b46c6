package store

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/event"
	"github.com/mohae/deepcopy"
)

// Change is delivered to Watch listeners after a commit.
type Change[S any] struct {
	State S
	Prev  S
}

// Guard inspects a patch before it is applied. Returning false vetoes the
// update; otherwise the returned patch is the one applied.
type Guard[S any] func(patch Patch, prev S) (Patch, bool)

// Store owns a value of type S. All mutation goes through Set, Update and Patch,
// each of which commits and then notifies every listener before returning.
// Safe for concurrent use.
//
// Listeners run outside the writer lock, so they may write to the store. With
// concurrent writers, notifications can therefore arrive in a different order
// than the commits. Each Change still pairs a committed state with the state
// it replaced; listeners that need the latest value should read State.
type Store[S any] struct {
	writeMu sync.Mutex // serializes writers; never held while notifying
	mu      sync.RWMutex
	state   S
	changes *event.Emitter[Change[S]]
	guard   Guard[S]
	clone   func(S) S
	logger  *slog.Logger
}

// Option configures a Store.
type Option[S any] func(*Store[S])

// WithGuard installs a pre-commit check for Patch.
func WithGuard[S any](guard Guard[S]) Option[S] {
	return func(s *Store[S]) {
		s.guard = guard
	}
}

// WithClone replaces the deep copy used to produce Update and Patch drafts.
// Use it when S holds values that DeepCopy cannot reproduce.
func WithClone[S any](clone func(S) S) Option[S] {
	return func(s *Store[S]) {
		s.clone = clone
	}
}

// WithLogger sets the logger used to report listener panics.
func WithLogger[S any](logger *slog.Logger) Option[S] {
	return func(s *Store[S]) {
		s.logger = logger
	}
}

// New creates a Store holding initial.
func New[S any](initial S, opts ...Option[S]) *Store[S] {
	s := &Store[S]{
		state:  initial,
		clone:  DeepCopy[S],
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.changes = event.NewEmitter[Change[S]](event.WithLogger(s.logger))
	return s
}

// DeepCopy clones v with github.com/mohae/deepcopy. Unexported struct fields
// are not copied.
func DeepCopy[S any](v S) S {
	copied, ok := deepcopy.Copy(v).(S)
	if !ok {
		// deepcopy returns nil for nil interfaces and pointers.
		var zero S
		return zero
	}
	return copied
}

// State returns the committed state.
func (s *Store[S]) State() S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot implements Observable.
func (s *Store[S]) Snapshot() any {
	return s.State()
}

func (s *Store[S]) node() (Observable, []Member) {
	return s, nil
}

// Subscribe implements Observable.
func (s *Store[S]) Subscribe(listener func()) Unsubscribe {
	handle := s.changes.On(func(Change[S]) { listener() })
	return handle.Dispose
}

// Watch subscribes with access to the new and previous state of one commit.
// The last call seen is not necessarily the current state; see Store.
func (s *Store[S]) Watch(listener func(state, prev S)) Unsubscribe {
	handle := s.changes.On(func(c Change[S]) { listener(c.State, c.Prev) })
	return handle.Dispose
}

// Set replaces the state.
func (s *Store[S]) Set(next S) {
	s.writeMu.Lock()
	prev := s.commit(next)
	s.writeMu.Unlock()

	s.changes.Fire(Change[S]{State: next, Prev: prev})
}

// Update applies fn to a deep copy of the state and commits the result.
// Values previously returned by State are never mutated.
func (s *Store[S]) Update(fn func(draft *S)) {
	prev, next := s.update(fn)
	s.changes.Fire(Change[S]{State: next, Prev: prev})
}

func (s *Store[S]) update(fn func(draft *S)) (prev, next S) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next = s.clone(s.State())
	fn(&next)
	prev = s.commit(next)
	return prev, next
}

// Patch applies a partial update. If a Guard is installed it sees the patch
// first and may rewrite or veto it. It reports whether the state was committed.
func (s *Store[S]) Patch(patch Patch) (bool, error) {
	prev, next, committed, err := s.patch(patch)
	if !committed {
		return false, err
	}
	s.changes.Fire(Change[S]{State: next, Prev: prev})
	return true, nil
}

func (s *Store[S]) patch(patch Patch) (prev, next S, committed bool, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev = s.State()
	if s.guard != nil {
		rewritten, ok := s.guard(patch, prev)
		if !ok {
			return prev, next, false, nil
		}
		patch = rewritten
	}
	next = s.clone(prev)
	if err := patch.ApplyTo(&next); err != nil {
		return prev, next, false, fmt.Errorf("failed to apply patch: %w", err)
	}
	s.commit(next)
	return prev, next, true, nil
}

func (s *Store[S]) commit(next S) S {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state = next
	return prev
}

// Listeners reports the number of active subscriptions.
func (s *Store[S]) Listeners() int {
	return s.changes.Len()
}

// Dispose drops every subscription.
func (s *Store[S]) Dispose() {
	s.changes.Dispose()
}
