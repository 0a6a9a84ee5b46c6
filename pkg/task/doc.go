/*
Package task tracks in-flight cancelable work and runs polling loops.

Manager pins awaitables as async.Cancelable handles and forgets them as soon as
they settle, for any reason. CancelAll cancels everything still tracked, which
is what an owner does when the screen or process that started the work goes
away. Cancellation is cooperative: pinned work keeps running, only its result
stops being awaited.

Poll repeats an operation at a fixed interval until a predicate holds, an
error aborts it, or it is cancelled. Cancellation is checked before each cycle;
a cycle already in flight completes.
*/
package task
