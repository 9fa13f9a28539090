// Package queue provides named at-least-once message queues with
// visibility-timeout redelivery. Two engines implement the contract: a
// SQLite table for single-node deployments and NATS JetStream for
// distributed ones.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultVisibilityTimeout is how long a received message stays hidden
// before the queue re-exposes it for retry.
const DefaultVisibilityTimeout = 30 * time.Second

// ErrPublish is the sentinel for PublishError.
var ErrPublish = errors.New("publish failed")

// PublishError reports that the queue engine rejected an enqueue. The
// message was not durably accepted and the caller must not assume
// delivery.
type PublishError struct {
	Queue string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to queue %s failed: %v", e.Queue, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

func (e *PublishError) Is(target error) bool {
	return target == ErrPublish
}

// Message is one received queue message. Receipt identifies this
// delivery, not the message: after the visibility timeout the engine
// issues a new receipt and the old one no longer acks.
type Message struct {
	ID           string
	Body         []byte
	Receipt      string
	ReceiveCount int
}

// Engine is the durable queue contract. Receive returns (nil, nil) when
// the queue is empty; a received message stays invisible for the given
// timeout and reappears unless deleted first. Implementations are safe
// for concurrent use.
type Engine interface {
	// EnsureQueue creates the queue if it does not exist. Idempotent.
	EnsureQueue(ctx context.Context, name string) error

	// Send durably enqueues one message. It returns only after the
	// engine has accepted the message.
	Send(ctx context.Context, queue string, body []byte) error

	// Receive claims up to one visible message for the duration of the
	// visibility timeout.
	Receive(ctx context.Context, queue string, visibility time.Duration) (*Message, error)

	// Delete acks a delivery by receipt. A stale receipt is a no-op.
	Delete(ctx context.Context, queue string, receipt string) error

	// Close releases engine resources.
	Close() error
}
