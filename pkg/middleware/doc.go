/*
Package middleware implements ordered, rejectable transformation pipelines
applied to a proposed update before it commits.

Each middleware receives a deep copy of the running candidate and of the
previous value plus a reject callback. Returning (v, true) replaces the
candidate for the following stages, returning (_, false) keeps it. Calling
reject aborts the pipeline: Process then reports no update and later stages do
not run. A panicking middleware is logged and skipped; that is a fault, not a
rejection.

Two instantiations share the algorithm: StateManager processes partial state
patches against the full previous state, DataManager processes whole values.
*/
package middleware
