package eventsourcing

import (
	"context"
	"errors"
	"fmt"
)

// Execute runs the generic command pipeline: load, rehydrate, create or
// decide, append under optimistic concurrency.
//
// Only ErrNotFound from GetByID triggers the create path; store errors
// pass through untranslated. Creation and decision failures surface as
// DomainRejection. A no-op decision (no events against an existing
// stream) succeeds without touching the store.
func Execute[C Command, E Event, S any](ctx context.Context, agg Aggregate[C, E, S], repo Repository[E, S], cmd C) error {
	id := cmd.AggregateID()
	if id == "" {
		return fmt.Errorf("%w: empty aggregate id", ErrBadCommand)
	}

	state, version, err := repo.GetByID(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		events, err := agg.Create(cmd)
		if err != nil {
			return Reject(err)
		}
		if len(events) == 0 {
			return &DomainRejection{Msg: "create must yield at least one event"}
		}
		return repo.Save(ctx, id, events, 0)

	case err != nil:
		return err

	default:
		events, err := agg.Decide(cmd, state)
		if err != nil {
			return Reject(err)
		}
		if len(events) == 0 {
			return nil
		}
		return repo.Save(ctx, id, events, version)
	}
}

// NewAggregateHandler wraps an aggregate and its repository as a Handler.
// The bus never distinguishes aggregate handlers from custom ones.
func NewAggregateHandler[C Command, E Event, S any](agg Aggregate[C, E, S], repo Repository[E, S]) (Handler, error) {
	if err := agg.Validate(); err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, fmt.Errorf("aggregate %q: repository is required", agg.Prefix)
	}
	return HandlerFunc(func(ctx context.Context, cmd Command) error {
		typed, ok := cmd.(C)
		if !ok {
			return fmt.Errorf("%w: %T is not a %s command", ErrBadCommand, cmd, agg.Prefix)
		}
		return Execute(ctx, agg, repo, typed)
	}), nil
}
