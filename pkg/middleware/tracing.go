package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jadehq/jade/pkg/eventsourcing"
)

// Tracing wraps each dispatch in an OpenTelemetry span using the global
// tracer provider. Without a configured provider the spans are no-ops.
func Tracing(tracerName string) eventsourcing.Middleware {
	if tracerName == "" {
		tracerName = "github.com/jadehq/jade"
	}
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer is Tracing with an explicit tracer.
func TracingWithTracer(tracer trace.Tracer) eventsourcing.Middleware {
	return func(next eventsourcing.Handler) eventsourcing.Handler {
		return eventsourcing.HandlerFunc(func(ctx context.Context, cmd eventsourcing.Command) error {
			meta := cmd.Meta()
			spanCtx, span := tracer.Start(ctx, fmt.Sprintf("command.%T", cmd),
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String("command.id", meta.ID),
					attribute.String("command.aggregate_id", cmd.AggregateID()),
					attribute.String("command.correlation_id", meta.CorrelationID),
				),
			)
			defer span.End()

			err := next.Handle(spanCtx, cmd)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
			span.SetStatus(codes.Ok, "")
			return nil
		})
	}
}
