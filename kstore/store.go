// Package kstore persists program snapshots, the byte blobs produced by
// Program.Collect, keyed by program id.
package kstore

import (
	"context"
	"errors"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// Store is a snapshot store. Implementations are safe for concurrent use.
type Store interface {
	// Put stores a snapshot, replacing any previous one for id.
	Put(ctx context.Context, id string, snapshot []byte) error

	// Get returns a copy of the snapshot for id or ErrSnapshotNotFound.
	Get(ctx context.Context, id string) ([]byte, error)

	// Delete removes the snapshot for id. Deleting a missing id is not an
	// error.
	Delete(ctx context.Context, id string) error

	// List returns the stored ids, sorted.
	List(ctx context.Context) ([]string, error)

	Close() error
}
