package middleware

// DataMiddleware transforms a whole replacement value.
type DataMiddleware[T any] = Func[T, T]

// DataManager is the pipeline for whole-value updates.
type DataManager[T any] = Manager[T, T]

// NewDataManager creates an empty DataManager.
func NewDataManager[T any](opts ...Option) *DataManager[T] {
	return NewManager[T, T](opts...)
}
