package event

import "sync"

// Disposer aggregates cleanup actions so a composite owner can release them together.
// A Disposer is itself Disposable, so disposers can be nested.
type Disposer struct {
	mu        sync.Mutex
	disposers []Disposable
}

// NewDisposer returns an empty Disposer.
func NewDisposer() *Disposer {
	return &Disposer{}
}

// Add registers a disposable. Nil values are ignored.
func (d *Disposer) Add(disposable Disposable) {
	if disposable == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disposers = append(d.disposers, disposable)
}

// AddFunc registers a cleanup function.
func (d *Disposer) AddFunc(fn func()) {
	if fn == nil {
		return
	}
	d.Add(DisposeFunc(fn))
}

// Len reports how many cleanups are pending.
func (d *Disposer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.disposers)
}

// Dispose runs every registered cleanup once, in registration order, and empties
// the registry. Panics raised by a cleanup are not recovered; the registry is
// detached before any cleanup runs, so nothing is ever invoked twice.
func (d *Disposer) Dispose() {
	d.mu.Lock()
	pending := d.disposers
	d.disposers = nil
	d.mu.Unlock()

	for _, disposable := range pending {
		disposable.Dispose()
	}
}
