/*
Package event provides the two leaf primitives the rest of weft is built on.

Emitter is a minimal typed publish/subscribe channel: listeners are plain
callbacks, dispatch is synchronous, and a panicking listener is isolated from
its siblings. Disposer aggregates cleanup handles so that an owner holding many
subscriptions can release all of them with a single call.
*/
package event
