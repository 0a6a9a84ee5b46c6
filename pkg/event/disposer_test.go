package event_test

import (
	"testing"

	"github.com/aretw0/weft/pkg/event"
	"github.com/stretchr/testify/assert"
)

func TestDisposer_RunsOnceInOrder(t *testing.T) {
	d := event.NewDisposer()
	var order []int

	d.AddFunc(func() { order = append(order, 1) })
	d.Add(event.DisposeFunc(func() { order = append(order, 2) }))
	d.AddFunc(func() { order = append(order, 3) })
	assert.Equal(t, 3, d.Len())

	d.Dispose()
	d.Dispose()

	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, d.Len())
}

func TestDisposer_PanicPropagates(t *testing.T) {
	d := event.NewDisposer()
	ran := false
	d.AddFunc(func() { panic("cleanup failed") })
	d.AddFunc(func() { ran = true })

	assert.Panics(t, d.Dispose)
	assert.False(t, ran)

	// The registry was detached before running, so nothing is retried.
	assert.NotPanics(t, d.Dispose)
}

func TestDisposer_Nested(t *testing.T) {
	parent := event.NewDisposer()
	child := event.NewDisposer()
	released := false
	child.AddFunc(func() { released = true })
	parent.Add(child)

	parent.Dispose()
	assert.True(t, released)
}

func TestDisposer_EmitterSubscriptions(t *testing.T) {
	e := event.NewEmitter[int]()
	d := event.NewDisposer()
	d.Add(e.On(func(int) {}))
	d.Add(e.On(func(int) {}))
	assert.Equal(t, 2, e.Len())

	d.Dispose()
	assert.Equal(t, 0, e.Len())
}
