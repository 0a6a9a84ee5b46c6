package middleware_test

import (
	"testing"

	"github.com/aretw0/weft/pkg/middleware"
	"github.com/aretw0/weft/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settings struct {
	Theme    string
	Volume   int
	Features map[string]bool
}

func addField(p store.Patch, prev settings, reject middleware.RejectFunc) (store.Patch, bool) {
	p["Volume"] = 11
	return p, true
}

func alwaysReject(p store.Patch, prev settings, reject middleware.RejectFunc) (store.Patch, bool) {
	reject()
	return nil, false
}

func TestStateManager_RejectAbortsPipeline(t *testing.T) {
	m := middleware.NewStateManager[settings]()
	m.Use(addField)
	m.Use(alwaysReject)
	laterRan := false
	m.Use(func(p store.Patch, prev settings, reject middleware.RejectFunc) (store.Patch, bool) {
		laterRan = true
		return p, false
	})

	candidate := store.Patch{"Theme": "dark"}
	result, ok := m.Process(candidate, settings{Theme: "light"})

	assert.False(t, ok)
	assert.Nil(t, result)
	assert.False(t, laterRan)
	assert.Equal(t, store.Patch{"Theme": "dark"}, candidate, "addField's mutation must not leak to the caller")
}

func TestStateManager_PanicIsSkipped(t *testing.T) {
	m := middleware.NewStateManager[settings]()
	m.Use(func(p store.Patch, prev settings, reject middleware.RejectFunc) (store.Patch, bool) {
		panic("faulty extension")
	})
	m.Use(addField)

	result, ok := m.Process(store.Patch{"Theme": "dark"}, settings{})
	require.True(t, ok)
	assert.Equal(t, store.Patch{"Theme": "dark", "Volume": 11}, result)
}

func TestStateManager_RejectThenPanicStillRejects(t *testing.T) {
	m := middleware.NewStateManager[settings]()
	m.Use(func(p store.Patch, prev settings, reject middleware.RejectFunc) (store.Patch, bool) {
		reject()
		panic("after reject")
	})

	_, ok := m.Process(store.Patch{}, settings{})
	assert.False(t, ok)
}

func TestStateManager_PrevIsACopy(t *testing.T) {
	m := middleware.NewStateManager[settings]()
	m.Use(func(p store.Patch, prev settings, reject middleware.RejectFunc) (store.Patch, bool) {
		prev.Features["beta"] = true
		return nil, false
	})

	prev := settings{Features: map[string]bool{}}
	_, ok := m.Process(store.Patch{}, prev)
	require.True(t, ok)
	assert.Empty(t, prev.Features)
}

func TestStateManager_KeepCandidateWhenNotReplaced(t *testing.T) {
	m := middleware.NewStateManager[settings]()
	m.Use(func(p store.Patch, prev settings, reject middleware.RejectFunc) (store.Patch, bool) {
		return store.Patch{"ignored": true}, false
	})

	result, ok := m.Process(store.Patch{"Theme": "dark"}, settings{})
	require.True(t, ok)
	assert.Equal(t, store.Patch{"Theme": "dark"}, result)
}

func TestStateManager_GuardOnStore(t *testing.T) {
	m := middleware.NewStateManager[settings]()
	m.Use(func(p store.Patch, prev settings, reject middleware.RejectFunc) (store.Patch, bool) {
		if v, ok := p["Volume"].(int); ok && v > 10 {
			reject()
		}
		return p, false
	})
	s := store.New(settings{Volume: 3}, store.WithGuard(middleware.Guard(m)))

	committed, err := s.Patch(store.Patch{"Volume": 99})
	require.NoError(t, err)
	assert.False(t, committed)
	assert.Equal(t, 3, s.State().Volume)

	committed, err = s.Patch(store.Patch{"Volume": 7})
	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, 7, s.State().Volume)
}

func TestDataManager_ChainsReplacements(t *testing.T) {
	m := middleware.NewDataManager[[]string]()
	m.Use(func(data, prev []string, reject middleware.RejectFunc) ([]string, bool) {
		return append(data, "b"), true
	})
	m.Use(func(data, prev []string, reject middleware.RejectFunc) ([]string, bool) {
		return append(data, "c"), true
	})

	result, ok := m.Process([]string{"a"}, nil)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, result)
}

func TestManager_RemoveAndClear(t *testing.T) {
	m := middleware.NewDataManager[int]()
	double := func(v, prev int, reject middleware.RejectFunc) (int, bool) { return v * 2, true }

	remove := m.Use(double)
	m.Use(double)
	assert.Equal(t, 2, m.Len())

	remove()
	remove()
	assert.Equal(t, 1, m.Len())

	result, _ := m.Process(3, 0)
	assert.Equal(t, 6, result)

	stale := m.Use(double)
	m.Clear()
	assert.Equal(t, 0, m.Len())

	m.Use(double)
	stale()
	assert.Equal(t, 1, m.Len(), "a remover from before Clear must not touch new registrations")
}

func TestManager_CustomClone(t *testing.T) {
	clones := 0
	m := middleware.NewDataManager[int](middleware.WithClone(func(v any) any {
		clones++
		return v
	}))

	_, ok := m.Process(1, 0)
	require.True(t, ok)
	assert.Equal(t, 2, clones)

	perCall := 0
	_, _ = m.Process(1, 0, middleware.WithClone(func(v any) any {
		perCall++
		return v
	}))
	assert.Equal(t, 2, perCall)
	assert.Equal(t, 2, clones)
}
