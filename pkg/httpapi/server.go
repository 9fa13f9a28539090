// Package httpapi exposes the CloudEvents ingress over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jadehq/jade/pkg/cloudevents"
)

// Server serves the CloudEvents ingress. It implements runner.Service.
type Server struct {
	addr      string
	processor *cloudevents.Processor
	logger    *slog.Logger

	httpServer *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the request and lifecycle logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates an ingress server listening on addr.
func NewServer(addr string, processor *cloudevents.Processor, opts ...ServerOption) *Server {
	s := &Server{
		addr:      addr,
		processor: processor,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP routes. The schema listing only exists in
// direct mode; a queued ingress does not know the command types.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Post("/api/cloudevents", s.handleCloudEvent)
	if s.processor.Mode() == cloudevents.ModeDirect {
		r.Get("/api/cloudevents/schemas", s.handleSchemas)
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (s *Server) handleCloudEvent(w http.ResponseWriter, r *http.Request) {
	var ce cloudevents.CloudEvent
	if err := json.NewDecoder(r.Body).Decode(&ce); err != nil {
		s.writeResult(w, cloudevents.Result{
			Status:     cloudevents.StatusRejected,
			Message:    fmt.Sprintf("invalid cloudevent envelope: %v", err),
			HTTPStatus: http.StatusBadRequest,
		})
		return
	}

	result := s.processor.Process(r.Context(), &ce)
	s.logger.Info("cloudevent processed",
		"event_id", result.ID,
		"schema", ce.DataSchema,
		"status", result.Status,
		"http_status", result.HTTPStatus,
	)
	s.writeResult(w, result)
}

func (s *Server) handleSchemas(w http.ResponseWriter, _ *http.Request) {
	schemas := s.processor.Schemas()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"schemas": schemas,
		"count":   len(schemas),
	})
}

func (s *Server) writeResult(w http.ResponseWriter, result cloudevents.Result) {
	s.writeJSON(w, result.HTTPStatus, result)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}

// Name implements runner.Service.
func (s *Server) Name() string { return "http-api" }

// Start binds the listener and serves in the background, so a bad
// address fails startup instead of the first request.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", "error", err)
		}
	}()

	s.logger.Info("http ingress listening", "addr", listener.Addr().String(), "mode", s.processor.Mode())
	return nil
}

// Stop drains in-flight requests, bounded by the context.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
