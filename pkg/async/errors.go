package async

import (
	"errors"
	"fmt"
)

// ErrCanceled is the settlement error of a Cancelable that was cancelled
// before its wrapped operation settled.
var ErrCanceled = errors.New("promise canceled")

// IsCanceled reports whether err is, or wraps, ErrCanceled.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// PanicError carries a panic recovered from an asynchronous operation.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("async operation panicked: %v", e.Value)
}
