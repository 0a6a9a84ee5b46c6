package store

import (
	"reflect"
	"sync"
)

// Combined aggregates several members into one Observable.
// Its leaf set is flattened and deduplicated once, in Combine.
type Combined struct {
	members []Member
	leaves  []Observable
}

// Combine builds a combined store. Nested *Combined members are flattened;
// an observable reachable through several paths is subscribed exactly once.
func Combine(members ...Member) *Combined {
	c := &Combined{members: append([]Member(nil), members...)}
	c.leaves = flatten(c.members)
	return c
}

func flatten(members []Member) []Observable {
	var leaves []Observable
	seen := make(map[any]struct{})

	var visit func(m Member)
	visit = func(m Member) {
		if m == nil {
			return
		}
		leafObs, children := m.node()

		var key any = m
		if leafObs != nil {
			key = leafObs
		}
		if reflect.TypeOf(key).Comparable() {
			if _, ok := seen[key]; ok {
				return
			}
			seen[key] = struct{}{}
		}

		if leafObs == nil {
			for _, child := range children {
				visit(child)
			}
			return
		}
		leaves = append(leaves, leafObs)
	}

	for _, m := range members {
		visit(m)
	}
	return leaves
}

func (c *Combined) node() (Observable, []Member) {
	return nil, c.members
}

// Members returns the top-level members in their original order.
func (c *Combined) Members() []Member {
	return append([]Member(nil), c.members...)
}

// Leaves returns the deduplicated subscription targets.
func (c *Combined) Leaves() []Observable {
	return append([]Observable(nil), c.leaves...)
}

// State returns the snapshot of every top-level member, positionally.
// Duplicated members keep their positions; nested combined members yield
// their own []any.
func (c *Combined) State() []any {
	states := make([]any, len(c.members))
	for i, m := range c.members {
		if m == nil {
			continue
		}
		states[i] = m.Snapshot()
	}
	return states
}

// Snapshot implements Observable.
func (c *Combined) Snapshot() any {
	return c.State()
}

// Subscribe attaches listener to every leaf and returns one Unsubscribe that
// detaches all of them.
func (c *Combined) Subscribe(listener func()) Unsubscribe {
	unsubscribes := make([]Unsubscribe, 0, len(c.leaves))
	for _, leaf := range c.leaves {
		unsubscribes = append(unsubscribes, leaf.Subscribe(listener))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, unsubscribe := range unsubscribes {
				unsubscribe()
			}
		})
	}
}
