package eventsourcing

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
)

// Registry holds the two compiled maps the dispatch path relies on:
// schema URN to command type, and command type to handler. It is
// populated at wiring time and read-only afterward; concurrent reads are
// safe.
type Registry struct {
	codec  *Codec
	logger *slog.Logger

	mu       sync.RWMutex
	types    map[string]reflect.Type
	handlers map[reflect.Type]Handler
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for registration diagnostics.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates a command registry bound to the shared JSON codec.
func NewRegistry(codec *Codec, opts ...RegistryOption) *Registry {
	r := &Registry{
		codec:    codec,
		logger:   slog.Default(),
		types:    make(map[string]reflect.Type),
		handlers: make(map[reflect.Type]Handler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register maps each command variant's schema URN to its type and the
// type to the handler. The URN comes from the variant's static Schema
// association; zero values are enough. Duplicate URNs from a later
// registration overwrite the earlier one and are logged.
func (r *Registry) Register(handler Handler, commands ...Command) error {
	if handler == nil {
		return fmt.Errorf("register: handler is required")
	}
	if len(commands) == 0 {
		return fmt.Errorf("register: at least one command variant is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cmd := range commands {
		schema := cmd.Schema()
		if _, err := ParseCommandSchema(schema); err != nil {
			return fmt.Errorf("register command %T: %w", cmd, err)
		}
		typ := reflect.TypeOf(cmd)
		if typ.Kind() == reflect.Pointer {
			typ = typ.Elem()
		}
		if prev, exists := r.types[schema]; exists && prev != typ {
			r.logger.Warn("command schema re-registered, last registration wins",
				"schema", schema,
				"previous", prev.String(),
				"type", typ.String(),
			)
		}
		r.types[schema] = typ
		r.handlers[typ] = handler
	}
	return nil
}

// TypeFor returns the command type registered for a schema URN.
func (r *Registry) TypeFor(schema string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	typ, ok := r.types[schema]
	return typ, ok
}

// HandlerFor returns the handler registered for a command type.
func (r *Registry) HandlerFor(typ reflect.Type) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[typ]
	return h, ok
}

// HandlerForCommand resolves the handler by the command's runtime type.
func (r *Registry) HandlerForCommand(cmd Command) (Handler, bool) {
	typ := reflect.TypeOf(cmd)
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return r.HandlerFor(typ)
}

// DeserializeCommand decodes a command payload by schema URN using the
// shared JSON policy. A missing mapping yields UnknownSchemaError, a
// decode failure MalformedPayloadError.
func (r *Registry) DeserializeCommand(schema string, data []byte) (Command, error) {
	typ, ok := r.TypeFor(schema)
	if !ok {
		return nil, &UnknownSchemaError{Schema: schema}
	}
	v, err := r.codec.Instantiate(typ, data)
	if err != nil {
		return nil, &MalformedPayloadError{Schema: schema, Err: err}
	}
	cmd, ok := v.(Command)
	if !ok {
		return nil, fmt.Errorf("registered type %s for %s is not a command", typ, schema)
	}
	return cmd, nil
}

// Schemas returns all registered command schema URNs, sorted.
func (r *Registry) Schemas() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]string, 0, len(r.types))
	for s := range r.types {
		schemas = append(schemas, s)
	}
	sort.Strings(schemas)
	return schemas
}
