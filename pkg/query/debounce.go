package query

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/weft/pkg/async"
)

// debouncer coalesces calls made within wait of each other into one trailing
// invocation with the latest arguments. Every coalesced caller receives the
// outcome of that invocation.
type debouncer[A any] struct {
	wait time.Duration
	run  func(ctx context.Context, args A) error

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	ctx     context.Context
	args    A
	waiters []*async.Deferred[struct{}]
}

func newDebouncer[A any](wait time.Duration, run func(ctx context.Context, args A) error) *debouncer[A] {
	return &debouncer[A]{wait: wait, run: run}
}

func (d *debouncer[A]) call(ctx context.Context, args A) error {
	waiter := async.NewDeferred[struct{}]()

	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.ctx = ctx
	d.args = args
	d.waiters = append(d.waiters, waiter)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, func() { d.fire(gen) })
	d.mu.Unlock()

	_, err := waiter.Await(ctx)
	return err
}

func (d *debouncer[A]) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		// Superseded by a later call whose timer is still pending.
		d.mu.Unlock()
		return
	}
	ctx, args, waiters := d.ctx, d.args, d.waiters
	d.ctx = nil
	d.waiters = nil
	d.timer = nil
	d.mu.Unlock()

	err := d.run(ctx, args)
	for _, w := range waiters {
		if err != nil {
			w.Reject(err)
		} else {
			w.Resolve(struct{}{})
		}
	}
}

// stop drops any pending invocation. Waiting callers are released with err.
func (d *debouncer[A]) stop(err error) {
	d.mu.Lock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	waiters := d.waiters
	d.waiters = nil
	d.ctx = nil
	d.mu.Unlock()

	for _, w := range waiters {
		w.Reject(err)
	}
}
