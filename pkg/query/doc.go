/*
Package query tracks the lifecycle of one asynchronous fetch in an observable store.

A Manager wraps a query function and exposes Fetch and Refetch. Its State
(data plus loading, fetching, pending and error flags) lives in a
store.Store, so it can be watched directly or combined with other stores.
By default calls are debounced: rapid successive calls collapse into the last
one of the window and every caller receives that call's outcome.
*/
package query
