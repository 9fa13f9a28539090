// Package nats implements the queue engine contract on NATS JetStream
// work-queue streams, for deployments where workers and ingress run on
// separate nodes.
package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jadehq/jade/pkg/queue"
)

const (
	streamPrefix  = "JADE-"
	subjectPrefix = "jade.queue."
)

// Engine is a JetStream-backed queue engine. Each queue maps to a
// work-queue stream with one durable pull consumer; the consumer's
// AckWait is the visibility timeout. Receipts track in-flight deliveries
// so Delete can ack the exact message. An entry whose AckWait has
// elapsed is dead weight: JetStream has already redelivered the message
// under a fresh receipt, so Receive sweeps expired entries on every
// call and the map stays bounded by the number of live deliveries.
type Engine struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	ownConn bool

	mu       sync.Mutex
	subs     map[string]*nats.Subscription
	inflight map[string]inflightEntry
}

// inflightEntry is one unacked delivery. expires mirrors the consumer's
// AckWait for the receipt.
type inflightEntry struct {
	msg     *nats.Msg
	expires time.Time
}

// NewEngine connects to a NATS server and prepares a JetStream context.
func NewEngine(url string) (*Engine, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	engine, err := NewEngineOn(nc)
	if err != nil {
		nc.Close()
		return nil, err
	}
	engine.ownConn = true
	return engine, nil
}

// NewEngineOn creates an engine on an existing connection. The caller
// keeps ownership of the connection.
func NewEngineOn(nc *nats.Conn) (*Engine, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return &Engine{
		nc:       nc,
		js:       js,
		subs:     make(map[string]*nats.Subscription),
		inflight: make(map[string]inflightEntry),
	}, nil
}

func streamName(queueName string) string  { return streamPrefix + queueName }
func subjectName(queueName string) string { return subjectPrefix + queueName }

// EnsureQueue creates the queue's work-queue stream if it does not
// exist.
func (e *Engine) EnsureQueue(ctx context.Context, name string) error {
	_, err := e.js.StreamInfo(streamName(name), nats.Context(ctx))
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("inspect stream for queue %s: %w", name, err)
	}

	_, err = e.js.AddStream(&nats.StreamConfig{
		Name:      streamName(name),
		Subjects:  []string{subjectName(name)},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
		Replicas:  1,
	}, nats.Context(ctx))
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("create stream for queue %s: %w", name, err)
	}
	return nil
}

// Send publishes one message. The publish waits for the JetStream ack,
// so a nil return means the message is durably stored.
func (e *Engine) Send(ctx context.Context, queueName string, body []byte) error {
	if _, err := e.js.Publish(subjectName(queueName), body, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish to queue %s: %w", queueName, err)
	}
	return nil
}

// Receive fetches up to one message. The consumer's AckWait, fixed on
// first use, is the redelivery clock; JetStream re-exposes unacked
// messages after it elapses.
func (e *Engine) Receive(ctx context.Context, queueName string, visibility time.Duration) (*queue.Message, error) {
	if visibility <= 0 {
		visibility = queue.DefaultVisibilityTimeout
	}
	sub, err := e.subscription(queueName, visibility)
	if err != nil {
		return nil, err
	}

	// A bounded fetch keeps the receiver loop responsive to Stop.
	fetchCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	msgs, err := sub.Fetch(1, nats.Context(fetchCtx))
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, nil
	case errors.Is(err, nats.ErrTimeout):
		return nil, nil
	default:
		return nil, fmt.Errorf("fetch from queue %s: %w", queueName, err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	msg := msgs[0]

	received := &queue.Message{Body: msg.Data, ReceiveCount: 1}
	if meta, err := msg.Metadata(); err == nil {
		received.ID = fmt.Sprintf("%s-%d", queueName, meta.Sequence.Stream)
		received.ReceiveCount = int(meta.NumDelivered)
	}

	e.mu.Lock()
	now := time.Now()
	for receipt, entry := range e.inflight {
		if now.After(entry.expires) {
			delete(e.inflight, receipt)
		}
	}
	received.Receipt = fmt.Sprintf("%s/%s", queueName, msg.Reply)
	e.inflight[received.Receipt] = inflightEntry{msg: msg, expires: now.Add(visibility)}
	e.mu.Unlock()

	return received, nil
}

// Delete acks the in-flight delivery for a receipt. Receipts whose
// AckWait already expired are stale; deleting them is a no-op and the
// redelivered copy wins.
func (e *Engine) Delete(ctx context.Context, queueName string, receipt string) error {
	e.mu.Lock()
	entry, ok := e.inflight[receipt]
	delete(e.inflight, receipt)
	e.mu.Unlock()
	if !ok || time.Now().After(entry.expires) {
		return nil
	}
	if err := entry.msg.AckSync(nats.Context(ctx)); err != nil {
		return fmt.Errorf("ack on queue %s: %w", queueName, err)
	}
	return nil
}

// Close drains subscriptions and, when the engine owns it, the
// connection.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sub := range e.subs {
		sub.Unsubscribe()
	}
	e.subs = make(map[string]*nats.Subscription)
	e.inflight = make(map[string]inflightEntry)
	if e.ownConn {
		e.nc.Close()
	}
	return nil
}

func (e *Engine) subscription(queueName string, visibility time.Duration) (*nats.Subscription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sub, ok := e.subs[queueName]; ok {
		return sub, nil
	}
	sub, err := e.js.PullSubscribe(
		subjectName(queueName),
		"worker-"+queueName,
		nats.AckExplicit(),
		nats.AckWait(visibility),
		nats.BindStream(streamName(queueName)),
	)
	if err != nil {
		return nil, fmt.Errorf("subscribe to queue %s: %w", queueName, err)
	}
	e.subs[queueName] = sub
	return sub, nil
}
