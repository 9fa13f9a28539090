// Package sqlite adapts the external SQLite event store to the
// eventsourcing repository contract. It is a pure Go implementation with
// no CGo dependencies.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jadehq/jade/pkg/eventsourcing"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// StoredEvent is one persisted event row. The event type tag on the wire
// is the event's schema URN; versions per stream are contiguous, strictly
// increasing and start at 1. Position is a store-global sequence external
// projection daemons can tail.
type StoredEvent struct {
	ID        string
	StreamID  string
	EventType string
	Version   int64
	Timestamp time.Time
	Data      []byte
	Metadata  []byte
	Position  int64
}

// EventStore is a SQLite-backed append-only event store with optimistic
// concurrency per stream. It is safe for concurrent use; each call runs
// in its own short-lived transaction.
type EventStore struct {
	db *sql.DB
}

type eventStoreConfig struct {
	dsn          string
	maxOpenConns int
	maxIdleConns int
	walMode      bool
	autoMigrate  bool
}

func defaultEventStoreConfig() eventStoreConfig {
	return eventStoreConfig{
		dsn:          "jade.db",
		maxOpenConns: 25,
		maxIdleConns: 5,
		walMode:      true,
		autoMigrate:  true,
	}
}

// EventStoreOption configures an EventStore.
type EventStoreOption func(*eventStoreConfig)

// WithDSN sets the data source name (file path or ":memory:").
func WithDSN(dsn string) EventStoreOption {
	return func(c *eventStoreConfig) { c.dsn = dsn }
}

// WithMemoryDatabase uses an in-memory database, for tests.
func WithMemoryDatabase() EventStoreOption {
	return func(c *eventStoreConfig) { c.dsn = ":memory:" }
}

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) EventStoreOption {
	return func(c *eventStoreConfig) { c.maxOpenConns = n }
}

// WithMaxIdleConns sets the maximum number of idle connections.
func WithMaxIdleConns(n int) EventStoreOption {
	return func(c *eventStoreConfig) { c.maxIdleConns = n }
}

// WithWALMode enables write-ahead logging. Recommended for file-backed
// databases; not applicable to :memory:.
func WithWALMode(enabled bool) EventStoreOption {
	return func(c *eventStoreConfig) { c.walMode = enabled }
}

// WithAutoMigrate runs pending migrations on startup.
func WithAutoMigrate(enabled bool) EventStoreOption {
	return func(c *eventStoreConfig) { c.autoMigrate = enabled }
}

// NewEventStore opens a SQLite event store.
//
//	store, err := sqlite.NewEventStore(sqlite.WithDSN("/var/lib/jade/events.db"))
//	store, err := sqlite.NewEventStore(sqlite.WithMemoryDatabase())
func NewEventStore(opts ...EventStoreOption) (*EventStore, error) {
	config := defaultEventStoreConfig()
	for _, opt := range opts {
		opt(&config)
	}

	db, err := sql.Open("sqlite", config.dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory database exists per connection; force a single one.
	if config.dsn == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(config.maxOpenConns)
		db.SetMaxIdleConns(config.maxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	store := &EventStore{db: db}

	if config.walMode && config.dsn != ":memory:" {
		if _, err := db.Exec(`
			PRAGMA journal_mode = WAL;
			PRAGMA synchronous = NORMAL;
			PRAGMA foreign_keys = ON;
		`); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	if config.autoMigrate {
		if err := runMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return store, nil
}

// DB exposes the underlying handle so collaborating stores (queue,
// snapshots) can share one database file.
func (s *EventStore) DB() *sql.DB {
	return s.db
}

// Close closes the store.
func (s *EventStore) Close() error {
	return s.db.Close()
}

// AppendToStream appends events to one stream atomically. expectedVersion
// 0 starts a new stream; otherwise it must equal the stream's last
// version, or ErrConcurrency is returned. A successful append advances
// the version by exactly len(events).
func (s *EventStore) AppendToStream(ctx context.Context, streamID string, expectedVersion int64, events []StoredEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM jade_events WHERE stream_id = ?`, streamID,
	).Scan(&current); err != nil {
		return fmt.Errorf("check current version: %w", err)
	}
	if current != expectedVersion {
		return eventsourcing.ErrConcurrency
	}

	for i, evt := range events {
		version := expectedVersion + int64(i) + 1
		_, err := tx.ExecContext(ctx, `
			INSERT INTO jade_events (event_id, stream_id, event_type, version, timestamp, data, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, evt.ID, streamID, evt.EventType, version, evt.Timestamp.Unix(), evt.Data, nullableText(evt.Metadata))
		if err != nil {
			// Two appends racing past the version check surface as a
			// unique-index violation on (stream_id, version).
			if isUniqueViolation(err) {
				return eventsourcing.ErrConcurrency
			}
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return eventsourcing.ErrConcurrency
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadStream loads all events of a stream in insertion order. An empty
// result means the stream does not exist.
func (s *EventStore) LoadStream(ctx context.Context, streamID string) ([]StoredEvent, error) {
	return s.LoadStreamFrom(ctx, streamID, 0)
}

// LoadStreamFrom loads the events of a stream with version > afterVersion.
func (s *EventStore) LoadStreamFrom(ctx context.Context, streamID string, afterVersion int64) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, stream_id, event_type, version, timestamp, data, metadata, position
		FROM jade_events
		WHERE stream_id = ? AND version > ?
		ORDER BY version ASC
	`, streamID, afterVersion)
	if err != nil {
		return nil, fmt.Errorf("query stream: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// StreamVersion returns the last version of a stream, 0 when it does not
// exist.
func (s *EventStore) StreamVersion(ctx context.Context, streamID string) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM jade_events WHERE stream_id = ?`, streamID,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("query stream version: %w", err)
	}
	return version, nil
}

// LoadAll loads events across all streams ordered by global position,
// starting after fromPosition. Used by external projection daemons.
func (s *EventStore) LoadAll(ctx context.Context, fromPosition int64, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, stream_id, event_type, version, timestamp, data, metadata, position
		FROM jade_events
		WHERE position > ?
		ORDER BY position ASC
		LIMIT ?
	`, fromPosition, limit)
	if err != nil {
		return nil, fmt.Errorf("query all events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]StoredEvent, error) {
	var events []StoredEvent
	for rows.Next() {
		var (
			evt      StoredEvent
			ts       int64
			metadata sql.NullString
		)
		if err := rows.Scan(&evt.ID, &evt.StreamID, &evt.EventType, &evt.Version, &ts, &evt.Data, &metadata, &evt.Position); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Timestamp = time.Unix(ts, 0).UTC()
		if metadata.Valid {
			evt.Metadata = []byte(metadata.String)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func nullableText(b []byte) sql.NullString {
	return sql.NullString{String: string(b), Valid: len(b) > 0}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
