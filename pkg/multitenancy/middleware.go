package multitenancy

import (
	"context"
	"fmt"

	"github.com/jadehq/jade/pkg/eventsourcing"
)

// Isolation rejects commands whose composite aggregate id names a
// different tenant than the context. Commands without a tenant prefix
// pass, so single-tenant callers are unaffected.
func Isolation() eventsourcing.Middleware {
	return func(next eventsourcing.Handler) eventsourcing.Handler {
		return eventsourcing.HandlerFunc(func(ctx context.Context, cmd eventsourcing.Command) error {
			tenantID, ok := TenantID(ctx)
			if !ok {
				aggregateTenant, _ := DecomposeAggregateID(cmd.AggregateID())
				if aggregateTenant != "" {
					return fmt.Errorf("%w: tenant-scoped aggregate %s without tenant context",
						eventsourcing.ErrBadCommand, cmd.AggregateID())
				}
				return next.Handle(ctx, cmd)
			}
			if err := ValidateTenant(cmd.AggregateID(), tenantID); err != nil {
				return fmt.Errorf("%w: %v", eventsourcing.ErrBadCommand, err)
			}
			return next.Handle(ctx, cmd)
		})
	}
}
