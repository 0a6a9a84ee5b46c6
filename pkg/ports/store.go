package ports

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrSnapshotNotFound is returned by SnapshotStore.Load when the key has no snapshot.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists opaque snapshots of service state.
// Implementations must be safe for concurrent use.
type SnapshotStore interface {
	// Save stores data under key, replacing any previous snapshot.
	Save(ctx context.Context, key string, data []byte) error

	// Load returns the snapshot stored under key.
	// Returns ErrSnapshotNotFound if there is none.
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes the snapshot. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys that currently hold a snapshot.
	List(ctx context.Context) ([]string, error)
}

// ValidateKey rejects keys that cannot be used safely as file names or
// Redis key suffixes.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return errors.New("snapshot key cannot be empty")
	case strings.ContainsAny(key, `/\`), key == ".", key == "..":
		return fmt.Errorf("invalid snapshot key %q", key)
	}
	return nil
}
