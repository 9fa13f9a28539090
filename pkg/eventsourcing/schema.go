package eventsourcing

import (
	"fmt"
	"regexp"
	"strconv"
)

// SchemaKind distinguishes command schemas from event schemas.
type SchemaKind string

const (
	SchemaKindCommand SchemaKind = "command"
	SchemaKindEvent   SchemaKind = "event"
)

// Schema is a parsed schema URN of the form
// urn:schema:jade:(command|event):{aggregate}:{action}:{version}.
// The URN is the wire contract for commands and events.
type Schema struct {
	Kind      SchemaKind
	Aggregate string
	Action    string
	Version   int
}

// The grammar is bit-exact and case-sensitive: lowercase ASCII, exactly
// seven colon-separated segments.
var (
	schemaPattern = regexp.MustCompile(`^urn:schema:jade:(command|event):([a-z][a-z0-9-]*):([a-z][a-z0-9-]*):([1-9][0-9]*)$`)
	prefixPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
)

// ParseSchema parses a schema URN. It returns ErrUnknownSchema-compatible
// errors only at the registry; here a malformed URN is a plain error.
func ParseSchema(urn string) (Schema, error) {
	m := schemaPattern.FindStringSubmatch(urn)
	if m == nil {
		return Schema{}, fmt.Errorf("invalid schema urn: %q", urn)
	}
	version, err := strconv.Atoi(m[4])
	if err != nil {
		return Schema{}, fmt.Errorf("invalid schema version in %q: %w", urn, err)
	}
	return Schema{
		Kind:      SchemaKind(m[1]),
		Aggregate: m[2],
		Action:    m[3],
		Version:   version,
	}, nil
}

// ParseCommandSchema parses a schema URN and requires it to be a command
// schema. The aggregate segment determines queue names and handler routing.
func ParseCommandSchema(urn string) (Schema, error) {
	s, err := ParseSchema(urn)
	if err != nil {
		return Schema{}, err
	}
	if s.Kind != SchemaKindCommand {
		return Schema{}, fmt.Errorf("schema %q is not a command schema", urn)
	}
	return s, nil
}

// String renders the canonical URN.
func (s Schema) String() string {
	return fmt.Sprintf("urn:schema:jade:%s:%s:%s:%d", s.Kind, s.Aggregate, s.Action, s.Version)
}

// CommandSchema builds a command schema URN.
func CommandSchema(aggregate, action string, version int) string {
	return Schema{Kind: SchemaKindCommand, Aggregate: aggregate, Action: action, Version: version}.String()
}

// EventSchema builds an event schema URN.
func EventSchema(aggregate, action string, version int) string {
	return Schema{Kind: SchemaKindEvent, Aggregate: aggregate, Action: action, Version: version}.String()
}

// ValidPrefix reports whether p is a legal stream prefix: lowercase
// letters, digits and '-', starting with a letter, at most 32 characters.
func ValidPrefix(p string) bool {
	return len(p) > 0 && len(p) <= 32 && prefixPattern.MatchString(p)
}

// StreamID returns the stream identifier for an aggregate instance.
func StreamID(prefix, aggregateID string) string {
	return prefix + "-" + aggregateID
}
