package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/jadehq/jade/pkg/eventsourcing"
	"github.com/jadehq/jade/pkg/observability"
)

// Metrics records dispatch count, duration and errors per command type.
func Metrics(m *observability.Metrics) eventsourcing.Middleware {
	return func(next eventsourcing.Handler) eventsourcing.Handler {
		return eventsourcing.HandlerFunc(func(ctx context.Context, cmd eventsourcing.Command) error {
			start := time.Now()
			err := next.Handle(ctx, cmd)
			m.RecordCommand(ctx, fmt.Sprintf("%T", cmd), time.Since(start), err)
			return err
		})
	}
}
