package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments for the command processing pipeline.
type Metrics struct {
	CommandDuration metric.Float64Histogram
	CommandTotal    metric.Int64Counter
	CommandErrors   metric.Int64Counter

	EventsAppended    metric.Int64Counter
	EventStoreLatency metric.Float64Histogram

	AggregateLoads metric.Int64Counter
	SnapshotHits   metric.Int64Counter
	SnapshotMisses metric.Int64Counter

	IngressTotal metric.Int64Counter

	QueuePublished metric.Int64Counter
	QueueReceived  metric.Int64Counter
	QueueAcked     metric.Int64Counter
	QueueRetries   metric.Int64Counter
}

// NewMetrics creates the instruments on a meter. With a no-op meter the
// instruments record nothing.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.CommandDuration, err = meter.Float64Histogram(
		"jade.command.duration",
		metric.WithDescription("Command handling duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create command.duration: %w", err)
	}
	if m.CommandTotal, err = meter.Int64Counter(
		"jade.command.total",
		metric.WithDescription("Commands dispatched"),
	); err != nil {
		return nil, fmt.Errorf("create command.total: %w", err)
	}
	if m.CommandErrors, err = meter.Int64Counter(
		"jade.command.errors",
		metric.WithDescription("Commands that returned an error"),
	); err != nil {
		return nil, fmt.Errorf("create command.errors: %w", err)
	}

	if m.EventsAppended, err = meter.Int64Counter(
		"jade.events.appended",
		metric.WithDescription("Events appended to the store"),
	); err != nil {
		return nil, fmt.Errorf("create events.appended: %w", err)
	}
	if m.EventStoreLatency, err = meter.Float64Histogram(
		"jade.eventstore.latency",
		metric.WithDescription("Event store operation latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create eventstore.latency: %w", err)
	}

	if m.AggregateLoads, err = meter.Int64Counter(
		"jade.aggregate.loads",
		metric.WithDescription("Aggregate rehydrations"),
	); err != nil {
		return nil, fmt.Errorf("create aggregate.loads: %w", err)
	}
	if m.SnapshotHits, err = meter.Int64Counter(
		"jade.snapshot.hits",
		metric.WithDescription("Loads that started from a snapshot"),
	); err != nil {
		return nil, fmt.Errorf("create snapshot.hits: %w", err)
	}
	if m.SnapshotMisses, err = meter.Int64Counter(
		"jade.snapshot.misses",
		metric.WithDescription("Loads that folded the full stream"),
	); err != nil {
		return nil, fmt.Errorf("create snapshot.misses: %w", err)
	}

	if m.IngressTotal, err = meter.Int64Counter(
		"jade.ingress.total",
		metric.WithDescription("CloudEvents received, by outcome"),
	); err != nil {
		return nil, fmt.Errorf("create ingress.total: %w", err)
	}

	if m.QueuePublished, err = meter.Int64Counter(
		"jade.queue.published",
		metric.WithDescription("Messages enqueued"),
	); err != nil {
		return nil, fmt.Errorf("create queue.published: %w", err)
	}
	if m.QueueReceived, err = meter.Int64Counter(
		"jade.queue.received",
		metric.WithDescription("Messages received from queues"),
	); err != nil {
		return nil, fmt.Errorf("create queue.received: %w", err)
	}
	if m.QueueAcked, err = meter.Int64Counter(
		"jade.queue.acked",
		metric.WithDescription("Messages acked after successful handling"),
	); err != nil {
		return nil, fmt.Errorf("create queue.acked: %w", err)
	}
	if m.QueueRetries, err = meter.Int64Counter(
		"jade.queue.retries",
		metric.WithDescription("Deliveries seen more than once"),
	); err != nil {
		return nil, fmt.Errorf("create queue.retries: %w", err)
	}

	return m, nil
}

// RecordCommand records one command dispatch.
func (m *Metrics) RecordCommand(ctx context.Context, commandType string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("command_type", commandType))
	m.CommandDuration.Record(ctx, duration.Seconds(), attrs)
	m.CommandTotal.Add(ctx, 1, attrs)
	if err != nil {
		m.CommandErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("command_type", commandType),
			attribute.String("error_type", fmt.Sprintf("%T", err)),
		))
	}
}

// RecordAppend records one store append of eventCount events.
func (m *Metrics) RecordAppend(ctx context.Context, duration time.Duration, eventCount int) {
	m.EventStoreLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("operation", "append")))
	m.EventsAppended.Add(ctx, int64(eventCount))
}

// RecordAggregateLoad records one rehydration and whether a snapshot
// served it.
func (m *Metrics) RecordAggregateLoad(ctx context.Context, prefix string, snapshotUsed bool) {
	attrs := metric.WithAttributes(attribute.String("aggregate", prefix))
	m.AggregateLoads.Add(ctx, 1, attrs)
	if snapshotUsed {
		m.SnapshotHits.Add(ctx, 1, attrs)
	} else {
		m.SnapshotMisses.Add(ctx, 1, attrs)
	}
}

// RecordIngress records one CloudEvents envelope by outcome status.
func (m *Metrics) RecordIngress(ctx context.Context, status string) {
	m.IngressTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordDelivery records one queue delivery and its outcome.
func (m *Metrics) RecordDelivery(ctx context.Context, queueName string, receiveCount int, acked bool) {
	attrs := metric.WithAttributes(attribute.String("queue", queueName))
	m.QueueReceived.Add(ctx, 1, attrs)
	if receiveCount > 1 {
		m.QueueRetries.Add(ctx, 1, attrs)
	}
	if acked {
		m.QueueAcked.Add(ctx, 1, attrs)
	}
}

// RecordPublish records one enqueue.
func (m *Metrics) RecordPublish(ctx context.Context, queueName string) {
	m.QueuePublished.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", queueName)))
}
