package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jadehq/jade/pkg/observability"
)

func newRecordedMetrics(t *testing.T) (*observability.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	m, err := observability.NewMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatalf("create metrics: %v", err)
	}
	return m, reader
}

func counterSum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, met := range scope.Metrics {
			if met.Name != name {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is not an int64 sum", name)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestRecordCommand(t *testing.T) {
	m, reader := newRecordedMetrics(t)
	ctx := context.Background()

	m.RecordCommand(ctx, "create", 5*time.Millisecond, nil)
	m.RecordCommand(ctx, "create", 5*time.Millisecond, errors.New("boom"))

	if got := counterSum(t, reader, "jade.command.total"); got != 2 {
		t.Errorf("command.total = %d, want 2", got)
	}
	if got := counterSum(t, reader, "jade.command.errors"); got != 1 {
		t.Errorf("command.errors = %d, want 1", got)
	}
}

func TestRecordAppendAndLoad(t *testing.T) {
	m, reader := newRecordedMetrics(t)
	ctx := context.Background()

	m.RecordAppend(ctx, time.Millisecond, 3)
	m.RecordAggregateLoad(ctx, "customer", true)
	m.RecordAggregateLoad(ctx, "customer", false)

	if got := counterSum(t, reader, "jade.events.appended"); got != 3 {
		t.Errorf("events.appended = %d, want 3", got)
	}
	if got := counterSum(t, reader, "jade.aggregate.loads"); got != 2 {
		t.Errorf("aggregate.loads = %d, want 2", got)
	}
	if got := counterSum(t, reader, "jade.snapshot.hits"); got != 1 {
		t.Errorf("snapshot.hits = %d, want 1", got)
	}
	if got := counterSum(t, reader, "jade.snapshot.misses"); got != 1 {
		t.Errorf("snapshot.misses = %d, want 1", got)
	}
}

func TestRecordQueueAndIngress(t *testing.T) {
	m, reader := newRecordedMetrics(t)
	ctx := context.Background()

	m.RecordIngress(ctx, "accepted")
	m.RecordIngress(ctx, "rejected")
	m.RecordPublish(ctx, "customer")
	m.RecordDelivery(ctx, "customer", 1, false)
	m.RecordDelivery(ctx, "customer", 2, true)

	if got := counterSum(t, reader, "jade.ingress.total"); got != 2 {
		t.Errorf("ingress.total = %d, want 2", got)
	}
	if got := counterSum(t, reader, "jade.queue.published"); got != 1 {
		t.Errorf("queue.published = %d, want 1", got)
	}
	if got := counterSum(t, reader, "jade.queue.received"); got != 2 {
		t.Errorf("queue.received = %d, want 2", got)
	}
	if got := counterSum(t, reader, "jade.queue.retries"); got != 1 {
		t.Errorf("queue.retries = %d, want 1", got)
	}
	if got := counterSum(t, reader, "jade.queue.acked"); got != 1 {
		t.Errorf("queue.acked = %d, want 1", got)
	}
}
