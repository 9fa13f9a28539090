// Package embeddednats wraps the embedded NATS server as a
// runner.Service so single-binary deployments can run broker and worker
// in one process.
package embeddednats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jadehq/jade/pkg/infrastructure/nats"
	"github.com/jadehq/jade/pkg/runner"
)

// Service runs an embedded JetStream-enabled NATS server for the
// lifetime of the process.
type Service struct {
	logger   *slog.Logger
	natsOpts []nats.EmbeddedOption

	server *nats.EmbeddedServer
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the lifecycle logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithServerOptions passes options through to StartEmbeddedServer.
func WithServerOptions(opts ...nats.EmbeddedOption) Option {
	return func(s *Service) { s.natsOpts = opts }
}

// New creates the service. The server starts on Start, not here.
func New(opts ...Option) *Service {
	s := &Service{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements runner.Service.
func (s *Service) Name() string { return "embedded-nats" }

// Start brings the server up and waits until it accepts connections.
func (s *Service) Start(_ context.Context) error {
	srv, err := nats.StartEmbeddedServer(s.natsOpts...)
	if err != nil {
		return fmt.Errorf("start embedded nats: %w", err)
	}
	s.server = srv
	return nil
}

// Stop shuts the server down. Clients should be stopped first; the
// runner stops services in reverse start order, which gives that for
// free when this service starts before the worker host.
func (s *Service) Stop(_ context.Context) error {
	if s.server != nil {
		s.server.Shutdown()
	}
	return nil
}

// HealthCheck verifies the server still accepts connections.
func (s *Service) HealthCheck(_ context.Context) error {
	if s.server == nil {
		return fmt.Errorf("embedded nats not started")
	}
	nc, err := s.server.Connect()
	if err != nil {
		return fmt.Errorf("embedded nats not responsive: %w", err)
	}
	nc.Close()
	return nil
}

// URL returns the client URL, empty before Start.
func (s *Service) URL() string {
	if s.server == nil {
		return ""
	}
	return s.server.URL()
}

var (
	_ runner.Service       = (*Service)(nil)
	_ runner.HealthChecker = (*Service)(nil)
)
