package event

// Disposable is anything holding a resource that can be released.
type Disposable interface {
	Dispose()
}

// DisposeFunc allows plain functions to satisfy Disposable.
type DisposeFunc func()

// Dispose calls the underlying function.
func (fn DisposeFunc) Dispose() {
	if fn != nil {
		fn()
	}
}
