package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/jadehq/jade/pkg/eventsourcing"
)

// Recovery turns handler panics into errors so one bad command cannot
// take down a receiver loop.
func Recovery(logger *slog.Logger) eventsourcing.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next eventsourcing.Handler) eventsourcing.Handler {
		return eventsourcing.HandlerFunc(func(ctx context.Context, cmd eventsourcing.Command) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "command handler panicked",
						slog.String("command_type", fmt.Sprintf("%T", cmd)),
						slog.String("command_id", cmd.Meta().ID),
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("command handler panicked: %v", r)
				}
			}()
			return next.Handle(ctx, cmd)
		})
	}
}
