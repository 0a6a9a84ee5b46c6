// Package transient keeps short-lived data handed between screens or
// commands, keyed by message id, in an observable store that can be
// snapshotted to a ports.SnapshotStore.
package transient
