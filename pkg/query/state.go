package query

// State is the lifecycle of one logical fetch.
type State[T any] struct {
	Data          T    `json:"data"`
	IsLoading     bool `json:"is_loading"`
	IsFetching    bool `json:"is_fetching"`
	IsDataPending bool `json:"is_data_pending"`
	IsError       bool `json:"is_error"`
}

// InitialState is the state of a Manager that has never fetched.
func InitialState[T any]() State[T] {
	return State[T]{IsDataPending: true}
}
