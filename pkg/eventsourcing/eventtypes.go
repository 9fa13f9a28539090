package eventsourcing

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
)

// EventTypes maps event schema URNs to event variants so the store
// adapter can tag payloads on the wire and decode them back. Each variant
// must be registered under its URN before use.
type EventTypes struct {
	codec  *Codec
	logger *slog.Logger

	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewEventTypes creates an empty event type registry bound to the shared
// JSON codec.
func NewEventTypes(codec *Codec, logger *slog.Logger) *EventTypes {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventTypes{
		codec:  codec,
		logger: logger,
		types:  make(map[string]reflect.Type),
	}
}

// Register registers event variants under their declared schema URNs.
// The URN is taken from the variant's static Schema association, not from
// instance data. A duplicate URN overwrites the earlier registration and
// is logged.
func (t *EventTypes) Register(events ...Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, evt := range events {
		schema := evt.Schema()
		if _, err := ParseSchema(schema); err != nil {
			return fmt.Errorf("register event %T: %w", evt, err)
		}
		typ := reflect.TypeOf(evt)
		if typ.Kind() == reflect.Pointer {
			typ = typ.Elem()
		}
		if prev, exists := t.types[schema]; exists && prev != typ {
			t.logger.Warn("event schema re-registered, last registration wins",
				"schema", schema,
				"previous", prev.String(),
				"type", typ.String(),
			)
		}
		t.types[schema] = typ
	}
	return nil
}

// Marshal serializes an event and returns its wire type tag (the URN).
func (t *EventTypes) Marshal(evt Event) (schema string, data []byte, err error) {
	schema = evt.Schema()
	t.mu.RLock()
	_, known := t.types[schema]
	t.mu.RUnlock()
	if !known {
		return "", nil, &UnknownSchemaError{Schema: schema}
	}
	data, err = t.codec.Marshal(evt)
	if err != nil {
		return "", nil, fmt.Errorf("marshal event %s: %w", schema, err)
	}
	return schema, data, nil
}

// Unmarshal decodes an event payload by its wire type tag.
func (t *EventTypes) Unmarshal(schema string, data []byte) (Event, error) {
	t.mu.RLock()
	typ, known := t.types[schema]
	t.mu.RUnlock()
	if !known {
		return nil, &UnknownSchemaError{Schema: schema}
	}
	v, err := t.codec.Instantiate(typ, data)
	if err != nil {
		return nil, &MalformedPayloadError{Schema: schema, Err: err}
	}
	evt, ok := v.(Event)
	if !ok {
		return nil, fmt.Errorf("registered type %s for %s is not an event", typ, schema)
	}
	return evt, nil
}

// Schemas returns all registered event schema URNs, sorted.
func (t *EventTypes) Schemas() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	schemas := make([]string, 0, len(t.types))
	for s := range t.types {
		schemas = append(schemas, s)
	}
	sort.Strings(schemas)
	return schemas
}
