package store

import "sync"

// SelectorOption configures SubscribeSelector.
type SelectorOption[T any] func(*selectorConfig[T])

type selectorConfig[T any] struct {
	equal func(a, b T) bool
}

// WithEquality replaces Shallow as the slice comparison.
func WithEquality[T any](equal func(a, b T) bool) SelectorOption[T] {
	return func(c *selectorConfig[T]) {
		if equal != nil {
			c.equal = equal
		}
	}
}

// SubscribeSelector calls listener(current, previous) whenever a change on src
// makes selector return a slice that the equality function reports as
// different. selector must be cheap and read only current state.
//
// The baseline is the slice selected when the subscription is made, and it is
// taken without calling the listener. The first change is therefore compared
// against that value: it fires, with previous set to the baseline, if and only
// if the selected slice moved.
func SubscribeSelector[T any](src Observable, selector func() T, listener func(slice, prev T), opts ...SelectorOption[T]) Unsubscribe {
	cfg := selectorConfig[T]{equal: Shallow[T]}
	for _, opt := range opts {
		opt(&cfg)
	}

	var mu sync.Mutex
	prev := selector()

	return src.Subscribe(func() {
		current := selector()

		mu.Lock()
		if cfg.equal(prev, current) {
			prev = current
			mu.Unlock()
			return
		}
		last := prev
		prev = current
		mu.Unlock()

		listener(current, last)
	})
}
