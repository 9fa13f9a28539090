package embeddednats

import (
	"context"
	"testing"

	"github.com/jadehq/jade/pkg/infrastructure/nats"
)

func TestServiceLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("embedded nats server")
	}

	svc := New(WithServerOptions(nats.WithStoreDir(t.TempDir())))
	ctx := context.Background()

	if err := svc.HealthCheck(ctx); err == nil {
		t.Error("health check must fail before start")
	}
	if svc.URL() != "" {
		t.Error("URL must be empty before start")
	}

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if svc.URL() == "" {
		t.Error("expected non-empty URL after start")
	}
	if err := svc.HealthCheck(ctx); err != nil {
		t.Errorf("health check: %v", err)
	}

	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
