package eventsourcing

import (
	"context"
	"fmt"
)

// Aggregate is the 5-tuple every domain provides. Create, Decide, Init and
// Evolve must be pure and free of I/O; all side effects live in
// repositories and handlers.
type Aggregate[C Command, E Event, S any] struct {
	// Prefix is the stream-prefix token: letters, digits and '-',
	// starting with a letter, at most 32 characters.
	Prefix string

	// Create decides the events for a command when no stream exists.
	// It must not require state and must yield at least one event.
	Create func(cmd C) ([]E, error)

	// Decide decides the events for a command against existing state.
	// Returning no events means "no-op, idempotent".
	Decide func(cmd C, state S) ([]E, error)

	// Init builds the initial state from the first event of a stream.
	// It must accept any event that could legally be first.
	Init func(first E) (S, error)

	// Evolve folds one event into state. It must be total over the
	// aggregate's events; unknown events must leave state unchanged.
	Evolve func(state S, evt E) (S, error)
}

// Validate checks the tuple is complete and the prefix is legal.
func (a Aggregate[C, E, S]) Validate() error {
	if !ValidPrefix(a.Prefix) {
		return fmt.Errorf("invalid aggregate prefix %q", a.Prefix)
	}
	if a.Create == nil || a.Decide == nil || a.Init == nil || a.Evolve == nil {
		return fmt.Errorf("aggregate %q: create, decide, init and evolve are all required", a.Prefix)
	}
	return nil
}

// Rehydrate folds a non-empty event sequence into state:
// init(events[0]) then evolve for each subsequent event. Any failure from
// init or evolve is reported as a corrupt stream.
func (a Aggregate[C, E, S]) Rehydrate(events []E) (S, error) {
	var zero S
	if len(events) == 0 {
		return zero, fmt.Errorf("%w: empty event sequence", ErrCorruptStream)
	}
	state, err := a.Init(events[0])
	if err != nil {
		return zero, fmt.Errorf("%w: init: %v", ErrCorruptStream, err)
	}
	for _, evt := range events[1:] {
		state, err = a.Evolve(state, evt)
		if err != nil {
			return zero, fmt.Errorf("%w: evolve: %v", ErrCorruptStream, err)
		}
	}
	return state, nil
}

// Repository provides persistence for one aggregate type. Implementations
// must be safe for concurrent use; each call uses its own short-lived
// session and must respect context cancellation.
type Repository[E Event, S any] interface {
	// GetByID loads the stream, rehydrates state and returns the last
	// event's version. Returns ErrNotFound when no stream exists and
	// StoreFailure on transport errors; the two are distinguishable.
	GetByID(ctx context.Context, aggregateID string) (S, int64, error)

	// Save appends events with an optimistic concurrency check against
	// expectedVersion. expectedVersion 0 starts a new stream. Returns
	// ErrConcurrency on conflict and StoreFailure on transport errors.
	Save(ctx context.Context, aggregateID string, events []E, expectedVersion int64) error
}
