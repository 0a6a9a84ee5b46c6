package async

import (
	"context"
	"sync"
)

// Awaitable is anything whose eventual result can be waited for.
type Awaitable[T any] interface {
	Await(ctx context.Context) (T, error)
}

// Deferred is a result slot settled from the outside by Resolve or Reject.
// The first settlement wins; later calls are no-ops.
type Deferred[T any] struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	value   T
	err     error
}

// NewDeferred creates an unsettled Deferred.
func NewDeferred[T any]() *Deferred[T] {
	return &Deferred[T]{done: make(chan struct{})}
}

// Resolved returns a Deferred already settled with value.
func Resolved[T any](value T) *Deferred[T] {
	d := NewDeferred[T]()
	d.Resolve(value)
	return d
}

// Rejected returns a Deferred already settled with err.
func Rejected[T any](err error) *Deferred[T] {
	d := NewDeferred[T]()
	d.Reject(err)
	return d
}

// Resolve settles the Deferred with value. It reports false if it was already settled.
func (d *Deferred[T]) Resolve(value T) bool {
	return d.settle(value, nil)
}

// Reject settles the Deferred with err. It reports false if it was already settled.
func (d *Deferred[T]) Reject(err error) bool {
	var zero T
	return d.settle(zero, err)
}

func (d *Deferred[T]) settle(value T, err error) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return false
	}
	d.settled = true
	d.value = value
	d.err = err
	close(d.done)
	return true
}

// Done is closed once the Deferred settles.
func (d *Deferred[T]) Done() <-chan struct{} {
	return d.done
}

// Settled reports whether Resolve or Reject has taken effect.
func (d *Deferred[T]) Settled() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// Result returns the settlement without blocking. ok is false while unsettled.
func (d *Deferred[T]) Result() (value T, err error, ok bool) {
	if !d.Settled() {
		return value, nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value, d.err, true
}

// Await blocks until the Deferred settles or ctx is done.
// Giving up on ctx does not settle the Deferred.
func (d *Deferred[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		value, err, _ := d.Result()
		return value, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Go runs fn on its own goroutine and returns a Deferred settled with its result.
// A panic inside fn rejects the Deferred with a *PanicError.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Deferred[T] {
	d := NewDeferred[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.Reject(&PanicError{Value: r})
			}
		}()
		value, err := fn(ctx)
		if err != nil {
			d.Reject(err)
			return
		}
		d.Resolve(value)
	}()
	return d
}
