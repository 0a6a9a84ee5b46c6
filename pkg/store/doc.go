/*
Package store implements observable state containers and their composition.

A Store owns one value and is its only writer: Set, Update and Patch commit a
new value and notify every listener synchronously before returning. Combine
aggregates several observables (including other combined stores) into a single
Observable whose subscription graph is flattened and deduplicated once, at
construction time:

	a := store.New(Profile{})
	b := store.New(Settings{})
	screen := store.Combine(a, store.Combine(a, b)) // a is subscribed once

	unsubscribe := store.SubscribeSelector(screen,
		func() string { return a.State().Name },
		func(name, prev string) { fmt.Println(prev, "->", name) },
	)
	defer unsubscribe()

Selector listeners only fire when the selected slice changes according to the
equality function, Shallow by default.
*/
package store
