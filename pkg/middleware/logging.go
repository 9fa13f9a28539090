// Package middleware provides command bus middleware: logging, panic
// recovery, tracing, metadata fill and command validation.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jadehq/jade/pkg/eventsourcing"
)

// Logging logs each command dispatch with timing.
func Logging(logger *slog.Logger) eventsourcing.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next eventsourcing.Handler) eventsourcing.Handler {
		return eventsourcing.HandlerFunc(func(ctx context.Context, cmd eventsourcing.Command) error {
			start := time.Now()
			meta := cmd.Meta()

			logger.InfoContext(ctx, "executing command",
				slog.String("command_type", fmt.Sprintf("%T", cmd)),
				slog.String("command_id", meta.ID),
				slog.String("aggregate_id", cmd.AggregateID()),
				slog.String("correlation_id", meta.CorrelationID),
			)

			err := next.Handle(ctx, cmd)
			duration := time.Since(start)

			if err != nil {
				logger.ErrorContext(ctx, "command failed",
					slog.String("command_type", fmt.Sprintf("%T", cmd)),
					slog.String("command_id", meta.ID),
					slog.Int64("duration_ms", duration.Milliseconds()),
					slog.String("error", err.Error()),
				)
				return err
			}

			logger.InfoContext(ctx, "command executed",
				slog.String("command_type", fmt.Sprintf("%T", cmd)),
				slog.String("command_id", meta.ID),
				slog.Int64("duration_ms", duration.Milliseconds()),
			)
			return nil
		})
	}
}
