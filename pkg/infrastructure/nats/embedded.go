// Package nats runs an embedded NATS server, used by tests and by
// single-binary deployments that want JetStream queues without an
// external broker.
package nats

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

const readyTimeout = 5 * time.Second

// EmbeddedServer is an in-process NATS server with JetStream enabled.
type EmbeddedServer struct {
	server       *server.Server
	url          string
	logger       *slog.Logger
	shutdownOnce sync.Once
}

// EmbeddedOption configures an embedded server.
type EmbeddedOption func(*embeddedConfig)

type embeddedConfig struct {
	storeDir string
	logger   *slog.Logger
}

// WithStoreDir sets the JetStream storage directory. Empty means a
// temporary directory.
func WithStoreDir(dir string) EmbeddedOption {
	return func(c *embeddedConfig) { c.storeDir = dir }
}

// WithEmbeddedLogger sets the logger for lifecycle diagnostics.
func WithEmbeddedLogger(logger *slog.Logger) EmbeddedOption {
	return func(c *embeddedConfig) { c.logger = logger }
}

// StartEmbeddedServer starts an embedded server on a random port and
// waits until it accepts connections.
func StartEmbeddedServer(opts ...EmbeddedOption) (*EmbeddedServer, error) {
	cfg := embeddedConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	s, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  cfg.storeDir,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}

	go s.Start()
	if !s.ReadyForConnections(readyTimeout) {
		s.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready after %s", readyTimeout)
	}

	cfg.logger.Info("embedded nats server started", "url", s.ClientURL())
	return &EmbeddedServer{server: s, url: s.ClientURL(), logger: cfg.logger}, nil
}

// URL returns the client connection URL.
func (e *EmbeddedServer) URL() string {
	return e.url
}

// Connect opens a client connection to this server.
func (e *EmbeddedServer) Connect() (*nats.Conn, error) {
	return nats.Connect(e.url)
}

// Shutdown stops the server and waits for it to finish, bounded by a
// timeout. Safe to call more than once.
func (e *EmbeddedServer) Shutdown() {
	e.shutdownOnce.Do(func() {
		e.server.Shutdown()

		done := make(chan struct{})
		go func() {
			e.server.WaitForShutdown()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(readyTimeout):
			e.logger.Warn("embedded nats server shutdown timed out")
		}
	})
}
