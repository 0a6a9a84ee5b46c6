package middleware

import "github.com/aretw0/weft/pkg/store"

// StateMiddleware inspects a partial state patch against the full previous state.
type StateMiddleware[S any] = Func[store.Patch, S]

// StateManager is the pipeline for partial state transitions.
type StateManager[S any] = Manager[store.Patch, S]

// NewStateManager creates an empty StateManager.
func NewStateManager[S any](opts ...Option) *StateManager[S] {
	return NewManager[store.Patch, S](opts...)
}

// Guard adapts m into a pre-commit guard so that a rejected patch never
// reaches the store.
func Guard[S any](m *StateManager[S]) store.Guard[S] {
	return func(patch store.Patch, prev S) (store.Patch, bool) {
		return m.Process(patch, prev)
	}
}
