package async

import (
	"context"
	"sync/atomic"
)

// Cancelable is an Awaitable with a cooperative cancellation flag.
// Only its source and Cancel can settle it.
type Cancelable[T any] struct {
	result   *Deferred[T]
	canceled atomic.Bool
}

// Wrap forwards the eventual settlement of src to a new Cancelable.
// The forwarding goroutine stops waiting on src as soon as the Cancelable
// settles; src itself keeps running.
func Wrap[T any](src Awaitable[T]) *Cancelable[T] {
	c := &Cancelable[T]{result: NewDeferred[T]()}

	waitCtx, stop := context.WithCancel(context.Background())
	go func() {
		<-c.result.Done()
		stop()
	}()
	go func() {
		// Once the Cancelable has settled these are no-ops.
		value, err := src.Await(waitCtx)
		if err != nil {
			c.result.Reject(err)
			return
		}
		c.result.Resolve(value)
	}()
	return c
}

// WrapFunc starts fn via Go and wraps the resulting Deferred.
func WrapFunc[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Cancelable[T] {
	return Wrap[T](Go(ctx, fn))
}

// Cancel marks the task as cancelled and, unless it already settled, rejects it
// with ErrCanceled. Idempotent.
func (c *Cancelable[T]) Cancel() {
	c.canceled.Store(true)
	c.result.Reject(ErrCanceled)
}

// IsCanceled reports whether Cancel has been called.
func (c *Cancelable[T]) IsCanceled() bool {
	return c.canceled.Load()
}

// Done is closed once the Cancelable settles.
func (c *Cancelable[T]) Done() <-chan struct{} {
	return c.result.Done()
}

// Settled reports whether the Cancelable has settled.
func (c *Cancelable[T]) Settled() bool {
	return c.result.Settled()
}

// Result returns the settlement without blocking. ok is false while unsettled.
func (c *Cancelable[T]) Result() (value T, err error, ok bool) {
	return c.result.Result()
}

// Await blocks until the Cancelable settles or ctx is done.
func (c *Cancelable[T]) Await(ctx context.Context) (T, error) {
	return c.result.Await(ctx)
}
