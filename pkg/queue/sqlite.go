package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jadehq/jade/pkg/idgen"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteEngine is a durable queue on a SQLite database. Visibility is a
// per-message timestamp: receiving claims the first visible message and
// pushes its visibility into the future; deleting by receipt acks it.
// Single-node only, but it keeps the worker free of external brokers.
type SQLiteEngine struct {
	db     *sql.DB
	ownsDB bool
}

const queueSchema = `
CREATE TABLE IF NOT EXISTS jade_queues (
	name TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS jade_queue_messages (
	id TEXT PRIMARY KEY,
	queue TEXT NOT NULL REFERENCES jade_queues(name),
	body BLOB NOT NULL,
	visible_at INTEGER NOT NULL,
	receipt TEXT,
	receive_count INTEGER NOT NULL DEFAULT 0,
	enqueued_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jade_queue_messages_poll
	ON jade_queue_messages (queue, visible_at, id);
`

// NewSQLiteEngine opens a queue engine on its own database file, or
// ":memory:" for tests.
func NewSQLiteEngine(dsn string) (*SQLiteEngine, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open queue database: %w", err)
	}
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	engine, err := NewSQLiteEngineOn(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	engine.ownsDB = true
	return engine, nil
}

// NewSQLiteEngineOn creates a queue engine on an existing database, so
// the queue can share the event store's file. The caller keeps ownership
// of the handle.
func NewSQLiteEngineOn(db *sql.DB) (*SQLiteEngine, error) {
	if _, err := db.Exec(queueSchema); err != nil {
		return nil, fmt.Errorf("create queue schema: %w", err)
	}
	return &SQLiteEngine{db: db}, nil
}

func (e *SQLiteEngine) EnsureQueue(ctx context.Context, name string) error {
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO jade_queues (name, created_at) VALUES (?, ?)
		ON CONFLICT (name) DO NOTHING
	`, name, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("ensure queue %s: %w", name, err)
	}
	return nil
}

func (e *SQLiteEngine) Send(ctx context.Context, queue string, body []byte) error {
	now := time.Now().UnixMilli()
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO jade_queue_messages (id, queue, body, visible_at, enqueued_at)
		VALUES (?, ?, ?, ?, ?)
	`, idgen.NewSortableID(), queue, body, now, now)
	if err != nil {
		return fmt.Errorf("enqueue to %s: %w", queue, err)
	}
	return nil
}

func (e *SQLiteEngine) Receive(ctx context.Context, queue string, visibility time.Duration) (*Message, error) {
	if visibility <= 0 {
		visibility = DefaultVisibilityTimeout
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin receive: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	msg := &Message{}
	err = tx.QueryRowContext(ctx, `
		SELECT id, body, receive_count FROM jade_queue_messages
		WHERE queue = ? AND visible_at <= ?
		ORDER BY id ASC
		LIMIT 1
	`, queue, now).Scan(&msg.ID, &msg.Body, &msg.ReceiveCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("poll queue %s: %w", queue, err)
	}

	msg.Receipt = idgen.NewSortableID()
	msg.ReceiveCount++
	res, err := tx.ExecContext(ctx, `
		UPDATE jade_queue_messages
		SET visible_at = ?, receipt = ?, receive_count = receive_count + 1
		WHERE id = ? AND visible_at <= ?
	`, now+visibility.Milliseconds(), msg.Receipt, msg.ID, now)
	if err != nil {
		return nil, fmt.Errorf("claim message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost the claim race; the caller polls again.
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit receive: %w", err)
	}
	return msg, nil
}

func (e *SQLiteEngine) Delete(ctx context.Context, queue string, receipt string) error {
	// Receipt match guards against acking a delivery that already timed
	// out and was handed to another receiver.
	_, err := e.db.ExecContext(ctx, `
		DELETE FROM jade_queue_messages WHERE queue = ? AND receipt = ?
	`, queue, receipt)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", queue, err)
	}
	return nil
}

// Depth returns the number of messages in a queue, visible or not.
func (e *SQLiteEngine) Depth(ctx context.Context, queue string) (int64, error) {
	var n int64
	err := e.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jade_queue_messages WHERE queue = ?`, queue,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count queue %s: %w", queue, err)
	}
	return n, nil
}

func (e *SQLiteEngine) Close() error {
	if e.ownsDB {
		return e.db.Close()
	}
	return nil
}
