package store_test

import (
	"testing"

	"github.com/aretw0/weft/pkg/store"
	"github.com/stretchr/testify/assert"
)

// countingStore is a foreign Observable that records how often Subscribe is called.
type countingStore struct {
	inner      *store.Store[int]
	subscribes int
}

func newCountingStore(v int) *countingStore {
	return &countingStore{inner: store.New(v)}
}

func (c *countingStore) Snapshot() any { return c.inner.State() }
func (c *countingStore) Set(v int)     { c.inner.Set(v) }
func (c *countingStore) Listeners() int { return c.inner.Listeners() }

func (c *countingStore) Subscribe(listener func()) store.Unsubscribe {
	c.subscribes++
	return c.inner.Subscribe(listener)
}

func TestCombine_SameStoreTwiceSubscribesOnce(t *testing.T) {
	s := newCountingStore(7)
	combined := store.Combine(store.Leaf(s), store.Leaf(s))

	unsubscribe := combined.Subscribe(func() {})
	defer unsubscribe()

	assert.Equal(t, 1, s.subscribes)
	assert.Equal(t, []any{7, 7}, combined.State())

	s.Set(8)
	assert.Equal(t, []any{8, 8}, combined.State())
}

func TestCombine_NestedFlattening(t *testing.T) {
	a := newCountingStore(1)
	b := newCountingStore(2)
	combined := store.Combine(store.Leaf(a), store.Combine(store.Leaf(a), store.Leaf(b)))

	assert.Len(t, combined.Leaves(), 2)
	assert.Equal(t, []any{1, []any{1, 2}}, combined.State())

	notifications := 0
	unsubscribe := combined.Subscribe(func() { notifications++ })

	assert.Equal(t, 1, a.subscribes)
	assert.Equal(t, 1, b.subscribes)

	b.Set(3)
	assert.Equal(t, 1, notifications)

	a.Set(4)
	assert.Equal(t, 2, notifications, "a change on A notifies exactly once")

	unsubscribe()
	unsubscribe()
	a.Set(5)
	b.Set(6)
	assert.Equal(t, 2, notifications)
	assert.Equal(t, 0, a.Listeners())
	assert.Equal(t, 0, b.Listeners())
}

func TestCombine_SharedNestedCombinedVisitedOnce(t *testing.T) {
	a := store.New("a")
	inner := store.Combine(a)
	outer := store.Combine(inner, inner, store.Combine(inner))

	assert.Len(t, outer.Leaves(), 1)
	assert.Len(t, outer.State(), 3)
}

func TestCombine_TypedStoresAreMembers(t *testing.T) {
	a := store.New(1)
	b := store.New("x")
	combined := store.Combine(a, b)

	assert.Equal(t, []any{1, "x"}, combined.State())
	assert.Equal(t, combined.State(), combined.Snapshot())
}

func TestSubscribeSelector_FiresOnlyOnChange(t *testing.T) {
	a := store.New(profile{Name: "ada", Age: 1})
	b := store.New(10)
	combined := store.Combine(a, b)

	type slice struct {
		Name  string
		Total int
	}
	var fired []slice
	var prevs []slice
	unsubscribe := store.SubscribeSelector(combined,
		func() slice { return slice{Name: a.State().Name, Total: b.State()} },
		func(cur, prev slice) {
			fired = append(fired, cur)
			prevs = append(prevs, prev)
		},
	)
	defer unsubscribe()

	a.Update(func(p *profile) { p.Age = 2 }) // slice unchanged
	assert.Empty(t, fired)

	b.Set(11)
	assert.Equal(t, []slice{{Name: "ada", Total: 11}}, fired)
	assert.Equal(t, []slice{{Name: "ada", Total: 10}}, prevs, "first change is compared with a true baseline")
}

func TestSubscribeSelector_FirstChangeFiresAgainstSubscribeTimeValue(t *testing.T) {
	s := store.New(0)
	var got [][2]int
	store.SubscribeSelector(s,
		func() int { return s.State() },
		func(cur, prev int) { got = append(got, [2]int{cur, prev}) },
	)

	s.Set(5)
	assert.Equal(t, [][2]int{{5, 0}}, got)

	s.Set(5)
	assert.Len(t, got, 1)
}

func TestSubscribeSelector_ShallowIgnoresReallocation(t *testing.T) {
	s := store.New(map[string]int{"a": 1})
	calls := 0

	store.SubscribeSelector(s,
		func() map[string]int {
			// A fresh allocation on every evaluation.
			return map[string]int{"a": s.State()["a"]}
		},
		func(cur, prev map[string]int) { calls++ },
	)

	s.Set(map[string]int{"a": 1})
	s.Set(map[string]int{"a": 1})
	assert.Equal(t, 0, calls)

	s.Set(map[string]int{"a": 2})
	assert.Equal(t, 1, calls)
}

func TestSubscribeSelector_CustomEquality(t *testing.T) {
	s := store.New(1)
	calls := 0
	store.SubscribeSelector(s,
		func() int { return s.State() },
		func(cur, prev int) { calls++ },
		store.WithEquality(func(a, b int) bool { return a%2 == b%2 }),
	)

	s.Set(3)
	assert.Equal(t, 0, calls)
	s.Set(4)
	assert.Equal(t, 1, calls)
}
