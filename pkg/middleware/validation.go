package middleware

import (
	"context"
	"fmt"

	"github.com/jadehq/jade/pkg/eventsourcing"
)

// Validatable is implemented by commands that carry field-level
// validation, typically built with the validators package.
type Validatable interface {
	Validate() error
}

// Validation rejects commands whose own validation fails, before they
// reach a handler. Commands without a Validate method pass through.
func Validation() eventsourcing.Middleware {
	return func(next eventsourcing.Handler) eventsourcing.Handler {
		return eventsourcing.HandlerFunc(func(ctx context.Context, cmd eventsourcing.Command) error {
			if v, ok := cmd.(Validatable); ok {
				if err := v.Validate(); err != nil {
					return fmt.Errorf("%w: %v", eventsourcing.ErrBadCommand, err)
				}
			}
			return next.Handle(ctx, cmd)
		})
	}
}

// FillMetadata populates absent metadata fields in place before the
// handler runs, so downstream code can rely on a complete envelope.
func FillMetadata() eventsourcing.Middleware {
	return func(next eventsourcing.Handler) eventsourcing.Handler {
		return eventsourcing.HandlerFunc(func(ctx context.Context, cmd eventsourcing.Command) error {
			cmd.Meta().Fill()
			return next.Handle(ctx, cmd)
		})
	}
}
