// Package worker consumes CloudEvents from queues and dispatches them to
// command handlers, with visibility-timeout retry on every failure.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jadehq/jade/pkg/cloudevents"
	"github.com/jadehq/jade/pkg/eventsourcing"
	"github.com/jadehq/jade/pkg/observability"
	"github.com/jadehq/jade/pkg/queue"
)

const (
	// DefaultPollIdle is the pause after an empty poll.
	DefaultPollIdle = time.Second

	// DefaultPollError is the backoff after a transport error in the
	// poll loop itself.
	DefaultPollError = 5 * time.Second
)

// Receiver processes one queue, one message at a time. A message is
// acked only after its handler succeeds; every other outcome, including
// an undecodable body, leaves it for redelivery after the visibility
// timeout.
type Receiver struct {
	queueName  string
	engine     queue.Engine
	processor  *cloudevents.Processor
	codec      *eventsourcing.Codec
	logger     *slog.Logger
	metrics    *observability.Metrics
	visibility time.Duration
	pollIdle   time.Duration
	pollError  time.Duration
}

// ReceiverOption configures a Receiver.
type ReceiverOption func(*Receiver)

// WithReceiverLogger sets the logger for delivery diagnostics.
func WithReceiverLogger(logger *slog.Logger) ReceiverOption {
	return func(r *Receiver) { r.logger = logger }
}

// WithReceiverMetrics counts deliveries, retries and acks.
func WithReceiverMetrics(m *observability.Metrics) ReceiverOption {
	return func(r *Receiver) { r.metrics = m }
}

// WithVisibilityTimeout sets how long a received message stays hidden.
// Handlers should complete well within this window.
func WithVisibilityTimeout(d time.Duration) ReceiverOption {
	return func(r *Receiver) { r.visibility = d }
}

// WithPollIntervals sets the idle pause and the error backoff.
func WithPollIntervals(idle, onError time.Duration) ReceiverOption {
	return func(r *Receiver) {
		r.pollIdle = idle
		r.pollError = onError
	}
}

// NewReceiver creates a receiver for one queue.
func NewReceiver(queueName string, engine queue.Engine, processor *cloudevents.Processor, codec *eventsourcing.Codec, opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		queueName:  queueName,
		engine:     engine,
		processor:  processor,
		codec:      codec,
		logger:     slog.Default(),
		visibility: queue.DefaultVisibilityTimeout,
		pollIdle:   DefaultPollIdle,
		pollError:  DefaultPollError,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// QueueName returns the queue this receiver polls.
func (r *Receiver) QueueName() string {
	return r.queueName
}

// Run polls until the context is cancelled. It always returns nil on
// cancellation; an in-flight message is either acked or left visible,
// never lost. A failing EnsureQueue is retried with the error backoff
// rather than killing the receiver while its host keeps running.
func (r *Receiver) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		err := r.engine.EnsureQueue(ctx, r.queueName)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Error("ensure queue failed", "queue", r.queueName, "error", err)
		r.sleep(ctx, r.pollError)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := r.engine.Receive(ctx, r.queueName, r.visibility)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("queue poll failed", "queue", r.queueName, "error", err)
			r.sleep(ctx, r.pollError)
			continue
		}
		if msg == nil {
			r.sleep(ctx, r.pollIdle)
			continue
		}

		r.handle(ctx, msg)
	}
}

// handle dispatches one delivery and acks on success. A handler
// interrupted by cancellation never acks: its effect on the store is
// unknown, so the message must stay retryable.
func (r *Receiver) handle(ctx context.Context, msg *queue.Message) {
	acked := false
	defer func() {
		if r.metrics != nil {
			r.metrics.RecordDelivery(ctx, r.queueName, msg.ReceiveCount, acked)
		}
	}()

	var ce cloudevents.CloudEvent
	if err := r.codec.Unmarshal(msg.Body, &ce); err != nil {
		r.logger.Warn("undecodable queue message, leaving for retry",
			"queue", r.queueName,
			"message_id", msg.ID,
			"receive_count", msg.ReceiveCount,
			"error", err,
		)
		return
	}

	result := r.processor.Dispatch(ctx, &ce)
	if result.Status != cloudevents.StatusAccepted || ctx.Err() != nil {
		r.logger.Warn("message processing failed, leaving for retry",
			"queue", r.queueName,
			"event_id", ce.ID,
			"status", result.Status,
			"receive_count", msg.ReceiveCount,
			"message", result.Message,
		)
		return
	}

	if err := r.engine.Delete(ctx, r.queueName, msg.Receipt); err != nil {
		// The handler succeeded but the ack failed; the message will be
		// redelivered and the handler must tolerate the duplicate.
		r.logger.Error("ack failed after successful handling",
			"queue", r.queueName,
			"event_id", ce.ID,
			"error", err,
		)
		return
	}
	acked = true
	r.logger.Debug("message processed", "queue", r.queueName, "event_id", ce.ID)
}

func (r *Receiver) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
