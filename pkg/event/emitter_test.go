package event_test

import (
	"testing"

	"github.com/aretw0/weft/pkg/event"
	"github.com/stretchr/testify/assert"
)

func TestEmitter_FireInRegistrationOrder(t *testing.T) {
	e := event.NewEmitter[int]()
	var got []string

	e.On(func(v int) { got = append(got, "a") })
	e.On(func(v int) { got = append(got, "b") })

	e.Fire(1)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestEmitter_PanickingListenerIsIsolated(t *testing.T) {
	e := event.NewEmitter[string]()
	var received []string

	e.On(func(s string) { panic("listener failure") })
	e.On(func(s string) { received = append(received, s) })

	assert.NotPanics(t, func() { e.Fire("hello") })
	assert.Equal(t, []string{"hello"}, received)
}

func TestEmitter_DisposeHandle(t *testing.T) {
	e := event.NewEmitter[int]()
	calls := 0

	handle := e.On(func(int) { calls++ })
	e.Fire(1)
	handle.Dispose()
	handle.Dispose() // idempotent
	e.Fire(2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, e.Len())
}

func TestEmitter_MutationDuringFireUsesSnapshot(t *testing.T) {
	e := event.NewEmitter[int]()
	lateCalls := 0
	var second event.Disposable

	e.On(func(int) {
		// Registering during dispatch must not affect the current dispatch.
		e.On(func(int) { lateCalls++ })
		if second != nil {
			second.Dispose()
		}
	})
	secondCalls := 0
	second = e.On(func(int) { secondCalls++ })

	e.Fire(1)
	assert.Equal(t, 0, lateCalls)
	assert.Equal(t, 1, secondCalls, "disposed during dispatch but part of the snapshot")

	e.Fire(2)
	assert.Equal(t, 1, lateCalls)
	assert.Equal(t, 1, secondCalls)
}

func TestEmitter_EventExposesRegistrationOnly(t *testing.T) {
	e := event.NewEmitter[int]()
	var onEvent event.Event[int] = e.Event()

	got := 0
	onEvent(func(v int) { got = v })
	e.Fire(42)

	assert.Equal(t, 42, got)
}

func TestEmitter_DisposeClearsAll(t *testing.T) {
	e := event.NewEmitter[int]()
	calls := 0
	e.On(func(int) { calls++ })
	e.On(func(int) { calls++ })

	e.Dispose()
	e.Dispose()
	e.Fire(1)

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, e.Len())
}
