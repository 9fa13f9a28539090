// Package cloudevents implements CloudEvents v1.0 command ingress: envelope
// validation, command dispatch in direct mode and queue handoff in queued
// mode.
package cloudevents

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jadehq/jade/pkg/eventsourcing"
)

// SpecVersion is the only CloudEvents version this ingress accepts.
const SpecVersion = "1.0"

// ContentType is the media type of a structured CloudEvents request.
const ContentType = "application/cloudevents+json"

// ErrEnvelopeInvalid is the sentinel for EnvelopeInvalidError.
var ErrEnvelopeInvalid = errors.New("invalid cloudevent envelope")

// EnvelopeInvalidError reports a CloudEvents envelope that fails the v1.0
// attribute requirements.
type EnvelopeInvalidError struct {
	Msg string
}

func (e *EnvelopeInvalidError) Error() string {
	return fmt.Sprintf("invalid cloudevent envelope: %s", e.Msg)
}

func (e *EnvelopeInvalidError) Is(target error) bool {
	return target == ErrEnvelopeInvalid
}

// Extension carries causality and tenancy attributes under the single
// "jade" extension. All fields are optional.
type Extension struct {
	CorrelationID string `json:"correlationId,omitempty"`
	CausationID   string `json:"causationId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	Tenant        string `json:"tenant,omitempty"`
}

// CloudEvent is a CloudEvents v1.0 envelope in structured JSON mode. Data
// stays raw until the command type is known.
type CloudEvent struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Type            string          `json:"type"`
	DataContentType string          `json:"datacontenttype,omitempty"`
	DataSchema      string          `json:"dataschema,omitempty"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time,omitzero"`
	Data            json.RawMessage `json:"data,omitempty"`
	Jade            *Extension      `json:"jade,omitempty"`
}

// Validate checks the required v1.0 envelope attributes: id, source, type
// and specversion non-empty, specversion exactly "1.0".
func (ce *CloudEvent) Validate() error {
	switch {
	case ce.ID == "":
		return &EnvelopeInvalidError{Msg: "missing id"}
	case ce.Source == "":
		return &EnvelopeInvalidError{Msg: "missing source"}
	case ce.Type == "":
		return &EnvelopeInvalidError{Msg: "missing type"}
	case ce.SpecVersion == "":
		return &EnvelopeInvalidError{Msg: "missing specversion"}
	case ce.SpecVersion != SpecVersion:
		return &EnvelopeInvalidError{Msg: fmt.Sprintf("unsupported specversion %q", ce.SpecVersion)}
	}
	return nil
}

// CommandSchema parses the dataschema attribute as a command schema URN
// and returns it. A missing or non-command dataschema is an error.
func (ce *CloudEvent) CommandSchema() (eventsourcing.Schema, error) {
	if ce.DataSchema == "" {
		return eventsourcing.Schema{}, &eventsourcing.UnknownSchemaError{Schema: "(missing dataschema)"}
	}
	return eventsourcing.ParseCommandSchema(ce.DataSchema)
}

// Status is the outcome class reported to the caller.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Result is the uniform processing outcome: the event id echoed back, a
// status, and an optional diagnostic message. HTTPStatus carries the
// transport mapping and is not part of the body.
type Result struct {
	ID      string `json:"id"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`

	HTTPStatus int `json:"-"`
}

func accepted(id string) Result {
	return Result{ID: id, Status: StatusAccepted, HTTPStatus: 202}
}

func rejected(id string, httpStatus int, err error) Result {
	return Result{ID: id, Status: StatusRejected, Message: err.Error(), HTTPStatus: httpStatus}
}

func failed(id string, err error) Result {
	return Result{ID: id, Status: StatusFailed, Message: err.Error(), HTTPStatus: 500}
}
