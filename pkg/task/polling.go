package task

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/weft/pkg/async"
)

// DefaultInterval separates polling cycles when PollOptions.Interval is zero.
const DefaultInterval = 5 * time.Second

// PollOptions controls a polling loop. NeedInterrupt and IsFinished are
// equivalent: either one returning true ends the loop with that cycle's result.
type PollOptions[T any] struct {
	Interval        time.Duration
	OnFrameResult   func(result T)
	NeedInterrupt   func(result T) bool
	IsFinished      func(result T) bool
	OnError         func(err error)
	ContinueOnError bool
}

// Poller repeatedly invokes an operation with the same arguments.
type Poller[A, T any] struct {
	manager *Manager
	fn      func(ctx context.Context, args A) (T, error)
	opts    PollOptions[T]

	result *async.Deferred[T]
	handle *async.Cancelable[T]
	start  sync.Once
}

// Poll prepares a polling loop over fn. The returned Poller is pinned on m
// immediately, so CancelAll also stops polls that have not started yet.
func Poll[A, T any](m *Manager, fn func(ctx context.Context, args A) (T, error), opts PollOptions[T]) *Poller[A, T] {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	result := async.NewDeferred[T]()
	return &Poller[A, T]{
		manager: m,
		fn:      fn,
		opts:    opts,
		result:  result,
		handle:  Pin[T](m, result),
	}
}

// Start launches the loop in the background and returns its handle.
// Only the first call starts a loop; later calls return the same handle.
func (p *Poller[A, T]) Start(ctx context.Context, args A) *async.Cancelable[T] {
	p.start.Do(func() {
		go p.loop(ctx, args)
	})
	return p.handle
}

// Run starts the loop and waits for its result.
func (p *Poller[A, T]) Run(ctx context.Context, args A) (T, error) {
	return p.Start(ctx, args).Await(ctx)
}

// Cancel stops the loop before its next cycle and settles it with async.ErrCanceled.
func (p *Poller[A, T]) Cancel() {
	p.handle.Cancel()
}

// Handle returns the cancelable result of the loop.
func (p *Poller[A, T]) Handle() *async.Cancelable[T] {
	return p.handle
}

func (p *Poller[A, T]) loop(ctx context.Context, args A) {
	for !p.handle.IsCanceled() {
		if err := ctx.Err(); err != nil {
			p.result.Reject(err)
			return
		}

		value, err := p.invoke(ctx, args)
		p.manager.metrics.cycle(err)

		if err == nil {
			if p.opts.OnFrameResult != nil {
				p.opts.OnFrameResult(value)
			}
			if p.done(value) {
				p.result.Resolve(value)
				return
			}
		} else if p.opts.ContinueOnError {
			p.manager.logger.Debug("Polling cycle failed, continuing", "err", err)
			if p.opts.OnError != nil {
				p.opts.OnError(err)
			}
		} else {
			p.result.Reject(err)
			return
		}

		if err := async.Sleep(ctx, p.opts.Interval); err != nil {
			p.result.Reject(err)
			return
		}
	}
}

func (p *Poller[A, T]) done(value T) bool {
	if p.opts.NeedInterrupt != nil && p.opts.NeedInterrupt(value) {
		return true
	}
	return p.opts.IsFinished != nil && p.opts.IsFinished(value)
}

func (p *Poller[A, T]) invoke(ctx context.Context, args A) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &async.PanicError{Value: r}
		}
	}()
	return p.fn(ctx, args)
}
