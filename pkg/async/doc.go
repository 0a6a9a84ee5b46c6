/*
Package async provides deferred results and cooperative cancellation.

A Deferred is a one-shot result slot whose settlement is decoupled from the
work producing it, so that code outside the running operation (a canceller, a
debouncer, a poll loop) can settle it. A Cancelable wraps any Awaitable and
adds a cancellation flag: cancelling settles the Cancelable with ErrCanceled
immediately, but never interrupts the wrapped operation. Cleanup of work whose
result was cancelled remains the responsibility of that work.
*/
package async
