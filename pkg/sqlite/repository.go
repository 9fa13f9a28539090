package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jadehq/jade/pkg/eventsourcing"
	"github.com/jadehq/jade/pkg/idgen"
	"github.com/jadehq/jade/pkg/observability"
)

// Repository adapts the event store to the eventsourcing repository
// contract for one aggregate. Stream id is "{prefix}-{aggregateId}";
// event payloads use the shared JSON policy and are tagged with their
// schema URNs.
type Repository[C eventsourcing.Command, E eventsourcing.Event, S any] struct {
	store   *EventStore
	agg     eventsourcing.Aggregate[C, E, S]
	events  *eventsourcing.EventTypes
	codec   *eventsourcing.Codec
	logger  *slog.Logger
	metrics *observability.Metrics

	snapshots *SnapshotStore
	strategy  SnapshotStrategy
}

type repoConfig struct {
	logger    *slog.Logger
	metrics   *observability.Metrics
	snapshots *SnapshotStore
	strategy  SnapshotStrategy
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*repoConfig)

// WithRepositoryLogger sets the logger for background diagnostics.
func WithRepositoryLogger(logger *slog.Logger) RepositoryOption {
	return func(c *repoConfig) { c.logger = logger }
}

// WithRepositoryMetrics records appends and aggregate loads on the
// given instruments.
func WithRepositoryMetrics(m *observability.Metrics) RepositoryOption {
	return func(c *repoConfig) { c.metrics = m }
}

// WithSnapshots enables snapshotting with the given store and strategy.
func WithSnapshots(store *SnapshotStore, strategy SnapshotStrategy) RepositoryOption {
	return func(c *repoConfig) {
		c.snapshots = store
		c.strategy = strategy
	}
}

// NewRepository creates a repository for an aggregate. All event variants
// the aggregate can emit must be registered in types beforehand.
func NewRepository[C eventsourcing.Command, E eventsourcing.Event, S any](
	store *EventStore,
	agg eventsourcing.Aggregate[C, E, S],
	types *eventsourcing.EventTypes,
	codec *eventsourcing.Codec,
	opts ...RepositoryOption,
) (*Repository[C, E, S], error) {
	if err := agg.Validate(); err != nil {
		return nil, err
	}
	cfg := repoConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Repository[C, E, S]{
		store:     store,
		agg:       agg,
		events:    types,
		codec:     codec,
		logger:    cfg.logger,
		metrics:   cfg.metrics,
		snapshots: cfg.snapshots,
		strategy:  cfg.strategy,
	}, nil
}

// GetByID loads the stream, rehydrates state and returns the last event's
// version. ErrNotFound and store failures are distinguishable.
func (r *Repository[C, E, S]) GetByID(ctx context.Context, aggregateID string) (S, int64, error) {
	var zero S
	streamID := eventsourcing.StreamID(r.agg.Prefix, aggregateID)

	var (
		state        S
		version      int64
		haveSnapshot bool
		snapVersion  int64
		snapTakenAt  time.Time
	)

	if r.snapshots != nil {
		snap, err := r.snapshots.Latest(ctx, streamID)
		switch {
		case errors.Is(err, ErrNoSnapshot):
		case err != nil:
			return zero, 0, &eventsourcing.StoreFailure{Op: "load snapshot", Err: err}
		default:
			if err := r.codec.Unmarshal(snap.Data, &state); err != nil {
				// A stale or incompatible snapshot is not fatal; fall
				// back to a full fold.
				r.logger.Warn("discarding undecodable snapshot", "stream", streamID, "error", err)
			} else {
				haveSnapshot = true
				snapVersion = snap.Version
				snapTakenAt = snap.TakenAt
				version = snap.Version
			}
		}
	}

	records, err := r.store.LoadStreamFrom(ctx, streamID, snapVersion)
	if err != nil {
		return zero, 0, &eventsourcing.StoreFailure{Op: "load stream", Err: err}
	}
	if len(records) == 0 && !haveSnapshot {
		return zero, 0, eventsourcing.ErrNotFound
	}

	if len(records) > 0 {
		events := make([]E, 0, len(records))
		for _, rec := range records {
			evt, err := r.decode(rec)
			if err != nil {
				return zero, 0, err
			}
			events = append(events, evt)
		}

		if haveSnapshot {
			for _, evt := range events {
				state, err = r.agg.Evolve(state, evt)
				if err != nil {
					return zero, 0, fmt.Errorf("%w: evolve: %v", eventsourcing.ErrCorruptStream, err)
				}
			}
		} else {
			state, err = r.agg.Rehydrate(events)
			if err != nil {
				return zero, 0, err
			}
		}
		version = records[len(records)-1].Version
	}

	r.maybeSnapshot(ctx, streamID, state, version, snapVersion, snapTakenAt)
	if r.metrics != nil {
		r.metrics.RecordAggregateLoad(ctx, r.agg.Prefix, haveSnapshot)
	}

	return state, version, nil
}

// Save appends events under optimistic concurrency. The store stamps
// persistence time; metadata timestamps supplied by clients stay inside
// the payloads untouched.
func (r *Repository[C, E, S]) Save(ctx context.Context, aggregateID string, events []E, expectedVersion int64) error {
	if len(events) == 0 {
		return nil
	}
	streamID := eventsourcing.StreamID(r.agg.Prefix, aggregateID)

	records := make([]StoredEvent, 0, len(events))
	for _, evt := range events {
		schema, data, err := r.events.Marshal(evt)
		if err != nil {
			return &eventsourcing.StoreFailure{Op: "encode event", Err: err}
		}
		records = append(records, StoredEvent{
			ID:        idgen.NewSortableID(),
			StreamID:  streamID,
			EventType: schema,
			Timestamp: eventsourcing.Now(),
			Data:      data,
		})
	}

	start := time.Now()
	err := r.store.AppendToStream(ctx, streamID, expectedVersion, records)
	switch {
	case err == nil:
		if r.metrics != nil {
			r.metrics.RecordAppend(ctx, time.Since(start), len(records))
		}
		return nil
	case errors.Is(err, eventsourcing.ErrConcurrency):
		return err
	default:
		return &eventsourcing.StoreFailure{Op: "append", Err: err}
	}
}

func (r *Repository[C, E, S]) decode(rec StoredEvent) (E, error) {
	var zero E
	evt, err := r.events.Unmarshal(rec.EventType, rec.Data)
	if err != nil {
		// Undecodable persisted events mean the stream is unreadable.
		return zero, fmt.Errorf("%w: event %s at version %d: %v",
			eventsourcing.ErrCorruptStream, rec.EventType, rec.Version, err)
	}
	typed, ok := evt.(E)
	if !ok {
		return zero, fmt.Errorf("%w: event %s does not belong to aggregate %s",
			eventsourcing.ErrCorruptStream, rec.EventType, r.agg.Prefix)
	}
	return typed, nil
}

// maybeSnapshot writes a snapshot after a load when the strategy says one
// is due. Snapshot failures are logged, never surfaced: reads must not
// fail because an optimization did.
func (r *Repository[C, E, S]) maybeSnapshot(ctx context.Context, streamID string, state S, version, snapVersion int64, lastAt time.Time) {
	if r.snapshots == nil {
		return
	}
	now := eventsourcing.Now()
	if !r.strategy.ShouldSnapshot(version, snapVersion, lastAt, now) {
		return
	}
	data, err := r.codec.Marshal(state)
	if err != nil {
		r.logger.Warn("snapshot encode failed", "stream", streamID, "error", err)
		return
	}
	snap := &Snapshot{StreamID: streamID, Version: version, Data: data, TakenAt: now}
	if err := r.snapshots.Save(ctx, snap); err != nil {
		r.logger.Warn("snapshot save failed", "stream", streamID, "error", err)
	}
}
