package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoSnapshot is returned when a stream has no snapshot.
var ErrNoSnapshot = errors.New("snapshot not found")

// Snapshot is a serialized aggregate state at a specific stream version.
// Snapshots are an optimization only; the event stream stays the source
// of truth and the storage contract is unchanged.
type Snapshot struct {
	StreamID string
	Version  int64
	Data     []byte
	TakenAt  time.Time
}

// SnapshotStrategy decides when a snapshot is due. The decision is a pure
// function of version distance and elapsed time.
type SnapshotStrategy struct {
	// EveryNEvents takes a snapshot each time the stream has grown by at
	// least this many events since the last one. Zero disables snapshots.
	EveryNEvents int64

	// MinInterval suppresses snapshots taken less than this long after
	// the previous one. Zero means no time constraint.
	MinInterval time.Duration
}

// ShouldSnapshot reports whether a snapshot is due at version, given the
// last snapshot's version and time.
func (s SnapshotStrategy) ShouldSnapshot(version, snapshotVersion int64, lastAt, now time.Time) bool {
	if s.EveryNEvents <= 0 {
		return false
	}
	if version-snapshotVersion < s.EveryNEvents {
		return false
	}
	if s.MinInterval > 0 && !lastAt.IsZero() && now.Sub(lastAt) < s.MinInterval {
		return false
	}
	return true
}

// SnapshotStore persists one snapshot per stream, keyed by stream id.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore creates a snapshot store on a database that has the
// event store schema applied.
func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Save stores a snapshot, replacing any older one for the stream.
func (s *SnapshotStore) Save(ctx context.Context, snap *Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jade_snapshots (stream_id, version, data, taken_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (stream_id) DO UPDATE SET
			version = excluded.version,
			data = excluded.data,
			taken_at = excluded.taken_at
	`, snap.StreamID, snap.Version, snap.Data, snap.TakenAt.Unix())
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Latest returns the stream's snapshot, or ErrNoSnapshot.
func (s *SnapshotStore) Latest(ctx context.Context, streamID string) (*Snapshot, error) {
	var (
		snap    Snapshot
		takenAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT stream_id, version, data, taken_at
		FROM jade_snapshots WHERE stream_id = ?
	`, streamID).Scan(&snap.StreamID, &snap.Version, &snap.Data, &takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	snap.TakenAt = time.Unix(takenAt, 0).UTC()
	return &snap, nil
}

// Delete removes a stream's snapshot if present.
func (s *SnapshotStore) Delete(ctx context.Context, streamID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM jade_snapshots WHERE stream_id = ?`, streamID,
	); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
