package runner

import "context"

// Service is one long-running component under the runner's control.
// Start blocks until the service is ready; Stop is graceful and bounded
// by its context. Both must respect cancellation.
type Service interface {
	// Name identifies the service in logs and errors.
	Name() string

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// HealthChecker is implemented by services that can report liveness.
// The runner's HealthCheck visits every service that does.
type HealthChecker interface {
	Service

	HealthCheck(ctx context.Context) error
}
