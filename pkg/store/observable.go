package store

// Unsubscribe removes a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

// Observable is the minimal state container contract: read the committed state
// and be told when it changes. Listeners receive no payload and re-read state.
//
// Implementations handed to Combine should be comparable (typically pointers),
// since identity is what deduplicates subscriptions.
type Observable interface {
	Snapshot() any
	Subscribe(listener func()) Unsubscribe
}

// Member is an element of a combined store: either a leaf observable or a
// nested *Combined. The set of implementations is closed.
type Member interface {
	Observable
	node() (leaf Observable, children []Member)
}

type leaf struct {
	Observable
}

func (l leaf) node() (Observable, []Member) {
	return l.Observable, nil
}

// Leaf turns any Observable into a combinable member.
// Values that already are members (a *Combined or a *Store) are returned as is.
func Leaf(o Observable) Member {
	if m, ok := o.(Member); ok {
		return m
	}
	return leaf{Observable: o}
}
