package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jadehq/jade/pkg/cloudevents"
	"github.com/jadehq/jade/pkg/eventsourcing"
	"github.com/jadehq/jade/pkg/observability"
	"github.com/jadehq/jade/pkg/queue"
	"github.com/jadehq/jade/pkg/worker"
)

type queuedCommand struct {
	WidgetID string                 `json:"widgetId"`
	Metadata eventsourcing.Metadata `json:"metadata"`
}

func (c *queuedCommand) Schema() string                { return "urn:schema:jade:command:widget:create:1" }
func (c *queuedCommand) AggregateID() string           { return c.WidgetID }
func (c *queuedCommand) Meta() *eventsourcing.Metadata { return &c.Metadata }

type countingHandler struct {
	calls atomic.Int64
	err   error
}

func (h *countingHandler) Handle(context.Context, eventsourcing.Command) error {
	h.calls.Add(1)
	return h.err
}

type fixture struct {
	engine    *queue.SQLiteEngine
	codec     *eventsourcing.Codec
	handler   *countingHandler
	processor *cloudevents.Processor
	recv      *worker.Receiver
}

func newFixture(t *testing.T, visibility time.Duration) *fixture {
	t.Helper()

	engine, err := queue.NewSQLiteEngine(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	codec := eventsourcing.NewCodec()
	registry := eventsourcing.NewRegistry(codec)
	handler := &countingHandler{}
	require.NoError(t, registry.Register(handler, &queuedCommand{}))

	processor := cloudevents.NewProcessor(registry, eventsourcing.NewBus(registry))
	recv := worker.NewReceiver("widget", engine, processor, codec,
		worker.WithVisibilityTimeout(visibility),
		worker.WithPollIntervals(5*time.Millisecond, 5*time.Millisecond),
	)
	return &fixture{engine: engine, codec: codec, handler: handler, processor: processor, recv: recv}
}

func (f *fixture) send(t *testing.T, body []byte) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.engine.EnsureQueue(ctx, "widget"))
	require.NoError(t, f.engine.Send(ctx, "widget", body))
}

func (f *fixture) envelope(t *testing.T) []byte {
	t.Helper()
	body, err := f.codec.Marshal(&cloudevents.CloudEvent{
		SpecVersion: cloudevents.SpecVersion,
		ID:          "evt-1",
		Source:      "test",
		Type:        "com.example.command",
		DataSchema:  "urn:schema:jade:command:widget:create:1",
		Data:        []byte(`{"widgetId":"w1"}`),
	})
	require.NoError(t, err)
	return body
}

func (f *fixture) run(t *testing.T) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := f.recv.Run(ctx); err != nil {
			t.Errorf("receiver: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestReceiverAcksOnSuccess(t *testing.T) {
	f := newFixture(t, 30*time.Second)
	f.send(t, f.envelope(t))
	f.run(t)

	require.Eventually(t, func() bool {
		return f.handler.calls.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		depth, err := f.engine.Depth(context.Background(), "widget")
		return err == nil && depth == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestReceiverRetriesOnHandlerFailure(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	f.handler.err = eventsourcing.Reject(context.DeadlineExceeded)
	f.send(t, f.envelope(t))
	f.run(t)

	// Failed handling leaves the message; the visibility timeout keeps
	// redelivering it.
	require.Eventually(t, func() bool {
		return f.handler.calls.Load() >= 2
	}, 3*time.Second, 5*time.Millisecond)

	depth, err := f.engine.Depth(context.Background(), "widget")
	require.NoError(t, err)
	require.EqualValues(t, 1, depth)
}

func TestReceiverLeavesUndecodableMessage(t *testing.T) {
	f := newFixture(t, 30*time.Second)
	f.send(t, []byte("not json"))
	f.run(t)

	time.Sleep(100 * time.Millisecond)
	require.Zero(t, f.handler.calls.Load())

	depth, err := f.engine.Depth(context.Background(), "widget")
	require.NoError(t, err)
	require.EqualValues(t, 1, depth)
}

// flakyEnsureEngine fails the first n EnsureQueue calls, then delegates.
type flakyEnsureEngine struct {
	queue.Engine
	failures atomic.Int64
}

func (e *flakyEnsureEngine) EnsureQueue(ctx context.Context, name string) error {
	if e.failures.Load() > 0 {
		e.failures.Add(-1)
		return errors.New("transient queue outage")
	}
	return e.Engine.EnsureQueue(ctx, name)
}

func TestReceiverRetriesEnsureQueue(t *testing.T) {
	f := newFixture(t, 30*time.Second)
	f.send(t, f.envelope(t))

	flaky := &flakyEnsureEngine{Engine: f.engine}
	flaky.failures.Store(2)
	recv := worker.NewReceiver("widget", flaky, f.processor, f.codec,
		worker.WithVisibilityTimeout(30*time.Second),
		worker.WithPollIntervals(5*time.Millisecond, 5*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := recv.Run(ctx); err != nil {
			t.Errorf("receiver: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		return f.handler.calls.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Zero(t, flaky.failures.Load())
}

func TestHostStartStop(t *testing.T) {
	f := newFixture(t, 30*time.Second)
	host := worker.NewHost([]*worker.Receiver{f.recv})

	ctx := context.Background()
	require.NoError(t, host.Start(ctx))

	f.send(t, f.envelope(t))
	require.Eventually(t, func() bool {
		return f.handler.calls.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, host.Stop(stopCtx))
}

func TestReceiverRecordsDeliveries(t *testing.T) {
	f := newFixture(t, 30*time.Second)
	f.send(t, f.envelope(t))

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })
	metrics, err := observability.NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	recv := worker.NewReceiver("widget", f.engine, f.processor, f.codec,
		worker.WithVisibilityTimeout(30*time.Second),
		worker.WithPollIntervals(5*time.Millisecond, 5*time.Millisecond),
		worker.WithReceiverMetrics(metrics),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := recv.Run(ctx); err != nil {
			t.Errorf("receiver: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		return f.handler.calls.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		depth, err := f.engine.Depth(context.Background(), "widget")
		return err == nil && depth == 0
	}, 2*time.Second, 5*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.EqualValues(t, 1, queueCounter(rm, "jade.queue.received"))
	require.EqualValues(t, 1, queueCounter(rm, "jade.queue.acked"))
}

func queueCounter(rm metricdata.ResourceMetrics, name string) int64 {
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, met := range scope.Metrics {
			if met.Name != name {
				continue
			}
			if sum, ok := met.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}
