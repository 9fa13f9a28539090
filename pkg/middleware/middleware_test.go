package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/jadehq/jade/pkg/eventsourcing"
	"github.com/jadehq/jade/pkg/middleware"
)

type testCommand struct {
	ID       string
	Invalid  bool
	Metadata eventsourcing.Metadata
}

func (c *testCommand) Schema() string                { return "urn:schema:jade:command:widget:create:1" }
func (c *testCommand) AggregateID() string           { return c.ID }
func (c *testCommand) Meta() *eventsourcing.Metadata { return &c.Metadata }

func (c *testCommand) Validate() error {
	if c.Invalid {
		return fmt.Errorf("widget id is required")
	}
	return nil
}

func noopHandler() eventsourcing.Handler {
	return eventsourcing.HandlerFunc(func(context.Context, eventsourcing.Command) error {
		return nil
	})
}

func TestValidationMiddleware(t *testing.T) {
	handler := middleware.Validation()(noopHandler())

	if err := handler.Handle(context.Background(), &testCommand{ID: "w1"}); err != nil {
		t.Fatalf("valid command: %v", err)
	}

	err := handler.Handle(context.Background(), &testCommand{ID: "w1", Invalid: true})
	if !errors.Is(err, eventsourcing.ErrBadCommand) {
		t.Fatalf("got %v, want bad command", err)
	}
}

func TestFillMetadataMiddleware(t *testing.T) {
	handler := middleware.FillMetadata()(noopHandler())

	cmd := &testCommand{ID: "w1"}
	if err := handler.Handle(context.Background(), cmd); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if cmd.Metadata.ID == "" || cmd.Metadata.CorrelationID != cmd.Metadata.ID || cmd.Metadata.Timestamp.IsZero() {
		t.Errorf("metadata not filled: %+v", cmd.Metadata)
	}

	cmd2 := &testCommand{ID: "w1", Metadata: eventsourcing.Metadata{ID: "given", CorrelationID: "corr"}}
	if err := handler.Handle(context.Background(), cmd2); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if cmd2.Metadata.ID != "given" || cmd2.Metadata.CorrelationID != "corr" {
		t.Errorf("present metadata overwritten: %+v", cmd2.Metadata)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := eventsourcing.HandlerFunc(func(context.Context, eventsourcing.Command) error {
		panic("boom")
	})
	handler := middleware.Recovery(slog.Default())(panicking)

	err := handler.Handle(context.Background(), &testCommand{ID: "w1"})
	if err == nil {
		t.Fatal("panic must surface as an error")
	}
}

func TestLoggingMiddlewarePassesErrorsThrough(t *testing.T) {
	sentinel := errors.New("handler failed")
	failing := eventsourcing.HandlerFunc(func(context.Context, eventsourcing.Command) error {
		return sentinel
	})
	handler := middleware.Logging(slog.Default())(failing)

	if err := handler.Handle(context.Background(), &testCommand{ID: "w1"}); !errors.Is(err, sentinel) {
		t.Fatalf("got %v", err)
	}
}
