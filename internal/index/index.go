package index

import "context"

// SnapshotStore persists index snapshots between restarts.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type SnapshotStore interface {
	Save(ctx context.Context, s Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
	Close() error
}

// Verify *DB satisfies SnapshotStore at compile time.
var _ SnapshotStore = (*DB)(nil)
