package nats_test

import (
	"context"
	"testing"
	"time"

	embeddednats "github.com/jadehq/jade/pkg/infrastructure/nats"
	natsqueue "github.com/jadehq/jade/pkg/queue/nats"
)

func newTestEngine(t *testing.T) *natsqueue.Engine {
	t.Helper()
	srv, err := embeddednats.StartEmbeddedServer(embeddednats.WithStoreDir(t.TempDir()))
	if err != nil {
		t.Fatalf("start embedded server: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	engine, err := natsqueue.NewEngine(srv.URL())
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestJetStreamSendReceiveDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("embedded nats server")
	}
	engine := newTestEngine(t)
	ctx := context.Background()

	if err := engine.EnsureQueue(ctx, "customer"); err != nil {
		t.Fatalf("ensure queue: %v", err)
	}
	// Idempotent on an existing stream.
	if err := engine.EnsureQueue(ctx, "customer"); err != nil {
		t.Fatalf("re-ensure queue: %v", err)
	}

	if err := engine.Send(ctx, "customer", []byte(`{"n":1}`)); err != nil {
		t.Fatalf("send: %v", err)
	}

	msg, err := engine.Receive(ctx, "customer", 30*time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msg == nil {
		t.Fatal("expected a message")
	}
	if string(msg.Body) != `{"n":1}` {
		t.Errorf("body = %s", msg.Body)
	}
	if msg.ReceiveCount != 1 {
		t.Errorf("receive count = %d, want 1", msg.ReceiveCount)
	}

	if err := engine.Delete(ctx, "customer", msg.Receipt); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Acked messages are gone from a work queue.
	again, err := engine.Receive(ctx, "customer", 30*time.Second)
	if err != nil {
		t.Fatalf("receive after ack: %v", err)
	}
	if again != nil {
		t.Fatalf("unexpected redelivery: %+v", again)
	}
}

func TestJetStreamReceiveEmptyQueue(t *testing.T) {
	if testing.Short() {
		t.Skip("embedded nats server")
	}
	engine := newTestEngine(t)
	ctx := context.Background()

	if err := engine.EnsureQueue(ctx, "order"); err != nil {
		t.Fatalf("ensure queue: %v", err)
	}
	msg, err := engine.Receive(ctx, "order", 30*time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msg != nil {
		t.Fatalf("expected no message, got %+v", msg)
	}
}

func TestJetStreamStaleReceiptDeleteIsNoOp(t *testing.T) {
	if testing.Short() {
		t.Skip("embedded nats server")
	}
	engine := newTestEngine(t)
	ctx := context.Background()

	if err := engine.Delete(ctx, "customer", "unknown-receipt"); err != nil {
		t.Fatalf("delete unknown receipt: %v", err)
	}
}
