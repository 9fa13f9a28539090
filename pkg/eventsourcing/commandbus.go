package eventsourcing

import (
	"context"
	"fmt"
	"log/slog"
)

// Bus dispatches commands to their handlers by runtime command type.
// All schema work happens in the registry at wiring time; Send only
// consults the compiled type map. The bus is stateless after wiring.
type Bus struct {
	registry   *Registry
	middleware []Middleware
	logger     *slog.Logger
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBusLogger sets the logger for send/result diagnostics.
func WithBusLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = logger }
}

// NewBus creates a command bus over a populated registry.
func NewBus(registry *Registry, opts ...BusOption) *Bus {
	b := &Bus{
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Use adds middleware to the dispatch chain. The first middleware added
// is the outermost. Use must be called during wiring, before Send.
func (b *Bus) Use(mw Middleware) {
	b.middleware = append(b.middleware, mw)
}

// Send dispatches a command to its registered handler. Handler errors are
// not translated; only the command type name is added for diagnostics.
func (b *Bus) Send(ctx context.Context, cmd Command) error {
	if cmd == nil {
		return fmt.Errorf("%w: nil command", ErrBadCommand)
	}

	handler, ok := b.registry.HandlerForCommand(cmd)
	if !ok {
		return &NoHandlerError{TypeName: fmt.Sprintf("%T", cmd)}
	}

	final := handler
	for i := len(b.middleware) - 1; i >= 0; i-- {
		final = b.middleware[i](final)
	}

	b.logger.Debug("dispatching command",
		"type", fmt.Sprintf("%T", cmd),
		"aggregate_id", cmd.AggregateID(),
		"command_id", cmd.Meta().ID,
	)

	if err := final.Handle(ctx, cmd); err != nil {
		return fmt.Errorf("command %T: %w", cmd, err)
	}
	return nil
}
