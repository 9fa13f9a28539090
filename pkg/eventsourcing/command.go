package eventsourcing

import "context"

// Command is the thin any-command envelope at the bus boundary. Concrete
// commands are closed tagged variants per aggregate; each variant carries
// its payload plus the metadata envelope and declares its schema URN
// statically through Schema.
type Command interface {
	// Schema returns the command's schema URN
	// (urn:schema:jade:command:{aggregate}:{action}:{version}).
	// It must be constant per variant and callable on a zero value.
	Schema() string

	// AggregateID returns the id of the aggregate the command targets.
	AggregateID() string

	// Meta returns the command's metadata envelope.
	Meta() *Metadata
}

// Event is implemented by every event variant. Events are immutable once
// appended; the schema URN is their type tag on the wire.
type Event interface {
	// Schema returns the event's schema URN
	// (urn:schema:jade:event:{aggregate}:{action}:{version}).
	// It must be constant per variant and callable on a zero value.
	Schema() string
}

// Handler processes a command. Aggregate handlers are produced by
// NewAggregateHandler; custom handlers (side-effect commands) implement
// this directly. Failures are returned as typed errors, never panics.
type Handler interface {
	Handle(ctx context.Context, cmd Command) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, cmd Command) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, cmd Command) error {
	return f(ctx, cmd)
}

// Middleware wraps handlers with cross-cutting concerns.
type Middleware func(Handler) Handler
