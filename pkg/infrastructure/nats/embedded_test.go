package nats

import (
	"sync"
	"testing"
	"time"
)

func startServer(t *testing.T) *EmbeddedServer {
	t.Helper()
	srv, err := StartEmbeddedServer(WithStoreDir(t.TempDir()))
	if err != nil {
		t.Fatalf("start embedded server: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestEmbeddedServerConnect(t *testing.T) {
	if testing.Short() {
		t.Skip("embedded nats server")
	}
	srv := startServer(t)

	if srv.URL() == "" {
		t.Fatal("expected non-empty URL")
	}

	nc, err := srv.Connect()
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()
	if !nc.IsConnected() {
		t.Error("expected established connection")
	}
}

func TestEmbeddedServerShutdownIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("embedded nats server")
	}
	srv := startServer(t)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			srv.Shutdown()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent shutdowns timed out")
	}
}

func TestEmbeddedServerShutdownWithActiveConnections(t *testing.T) {
	if testing.Short() {
		t.Skip("embedded nats server")
	}
	srv := startServer(t)

	nc, err := srv.Connect()
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()

	done := make(chan struct{})
	go func() {
		srv.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown timed out with active connection")
	}
}
