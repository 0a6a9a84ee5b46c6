/*
Package ports defines the driven ports (interfaces) used to persist weft state.

These interfaces decouple the in-memory services from storage backends, so the
same transient data service can run against memory, the local filesystem or
Redis.

# Key Interfaces

  - SnapshotStore: Saves, loads and lists opaque snapshots by key.
  - DistributedLocker: Serializes snapshot writes across replicas.
*/
package ports
