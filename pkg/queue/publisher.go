package queue

import (
	"context"
	"sync"

	"github.com/jadehq/jade/pkg/cloudevents"
	"github.com/jadehq/jade/pkg/eventsourcing"
	"github.com/jadehq/jade/pkg/observability"
)

// Publisher routes CloudEvents onto per-aggregate queues. The queue name
// is the aggregate segment of the command schema URN, so every command
// for one aggregate type lands on one queue.
type Publisher struct {
	engine  Engine
	codec   *eventsourcing.Codec
	metrics *observability.Metrics

	mu      sync.Mutex
	ensured map[string]struct{}
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPublisherMetrics counts enqueued messages per queue.
func WithPublisherMetrics(m *observability.Metrics) PublisherOption {
	return func(p *Publisher) { p.metrics = m }
}

// NewPublisher creates a publisher over a queue engine.
func NewPublisher(engine Engine, codec *eventsourcing.Codec, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		engine:  engine,
		codec:   codec,
		ensured: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish serializes the envelope and durably enqueues it on the
// aggregate's queue, creating the queue on first use. It returns only
// after the engine has accepted the message; any engine error surfaces
// as a PublishError.
func (p *Publisher) Publish(ctx context.Context, ce *cloudevents.CloudEvent) error {
	schema, err := ce.CommandSchema()
	if err != nil {
		return &PublishError{Err: err}
	}
	queueName := schema.Aggregate

	if err := p.ensureQueue(ctx, queueName); err != nil {
		return &PublishError{Queue: queueName, Err: err}
	}

	body, err := p.codec.Marshal(ce)
	if err != nil {
		return &PublishError{Queue: queueName, Err: err}
	}
	if err := p.engine.Send(ctx, queueName, body); err != nil {
		return &PublishError{Queue: queueName, Err: err}
	}
	if p.metrics != nil {
		p.metrics.RecordPublish(ctx, queueName)
	}
	return nil
}

func (p *Publisher) ensureQueue(ctx context.Context, name string) error {
	p.mu.Lock()
	_, done := p.ensured[name]
	p.mu.Unlock()
	if done {
		return nil
	}
	if err := p.engine.EnsureQueue(ctx, name); err != nil {
		return err
	}
	p.mu.Lock()
	p.ensured[name] = struct{}{}
	p.mu.Unlock()
	return nil
}
