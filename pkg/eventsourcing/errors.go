package eventsourcing

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an aggregate has no stream yet.
	// It is an internal signal: the pipeline turns it into the create path.
	ErrNotFound = errors.New("aggregate not found")

	// ErrConcurrency is returned on an optimistic append conflict.
	// The caller may retry after reloading.
	ErrConcurrency = errors.New("concurrency conflict: stream version mismatch")

	// ErrBadCommand is returned for commands with a missing or invalid
	// aggregate id, or an unexpected runtime shape.
	ErrBadCommand = errors.New("bad command")

	// ErrCorruptStream is returned when rehydration fails on events that
	// were read back from the store.
	ErrCorruptStream = errors.New("corrupt stream")

	// ErrDomainRejected is the sentinel for DomainRejection.
	ErrDomainRejected = errors.New("rejected by domain")

	// ErrStoreFailure is the sentinel for StoreFailure.
	ErrStoreFailure = errors.New("store failure")

	// ErrUnknownSchema is the sentinel for UnknownSchemaError.
	ErrUnknownSchema = errors.New("unknown schema")

	// ErrMalformedPayload is the sentinel for MalformedPayloadError.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrNoHandler is the sentinel for NoHandlerError.
	ErrNoHandler = errors.New("no handler registered")

	// ErrExternalFailure is the sentinel for ExternalFailure.
	ErrExternalFailure = errors.New("external dependency failed")
)

// DomainRejection carries the aggregate's reason for refusing a command.
type DomainRejection struct {
	Msg string
}

func (e *DomainRejection) Error() string {
	return fmt.Sprintf("rejected by domain: %s", e.Msg)
}

func (e *DomainRejection) Is(target error) bool {
	return target == ErrDomainRejected
}

// Reject wraps err as a domain rejection unless it already is one.
func Reject(err error) error {
	if errors.Is(err, ErrDomainRejected) {
		return err
	}
	return &DomainRejection{Msg: err.Error()}
}

// StoreFailure is a transport or driver error from the event store.
type StoreFailure struct {
	Op  string
	Err error
}

func (e *StoreFailure) Error() string {
	return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
}

func (e *StoreFailure) Unwrap() error { return e.Err }

func (e *StoreFailure) Is(target error) bool {
	return target == ErrStoreFailure
}

// UnknownSchemaError is returned when the registry has no mapping for a
// schema URN.
type UnknownSchemaError struct {
	Schema string
}

func (e *UnknownSchemaError) Error() string {
	return fmt.Sprintf("unknown schema: %s", e.Schema)
}

func (e *UnknownSchemaError) Is(target error) bool {
	return target == ErrUnknownSchema
}

// MalformedPayloadError is a JSON decode failure for a known schema.
type MalformedPayloadError struct {
	Schema string
	Err    error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload for %s: %v", e.Schema, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

func (e *MalformedPayloadError) Is(target error) bool {
	return target == ErrMalformedPayload
}

// NoHandlerError is returned when the registry maps a schema to a command
// type but no handler is registered for that type.
type NoHandlerError struct {
	TypeName string
}

func (e *NoHandlerError) Error() string {
	return fmt.Sprintf("no handler registered for command type %s", e.TypeName)
}

func (e *NoHandlerError) Is(target error) bool {
	return target == ErrNoHandler
}

// ExternalFailure is returned by custom handlers when an external
// dependency fails. No event is appended in that case.
type ExternalFailure struct {
	Op  string
	Err error
}

func (e *ExternalFailure) Error() string {
	return fmt.Sprintf("external dependency failed during %s: %v", e.Op, e.Err)
}

func (e *ExternalFailure) Unwrap() error { return e.Err }

func (e *ExternalFailure) Is(target error) bool {
	return target == ErrExternalFailure
}
