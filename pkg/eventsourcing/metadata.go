package eventsourcing

import (
	"time"

	"github.com/google/uuid"
)

// TimeFunc is a function that returns the current time.
// This can be overridden for testing.
var TimeFunc = time.Now

// Now returns the current time using the configured TimeFunc.
func Now() time.Time {
	return TimeFunc()
}

// Metadata is the envelope present on every command and, optionally, on
// persisted events. It carries identity and causality information.
type Metadata struct {
	// ID uniquely identifies this command or event.
	ID string `json:"id"`

	// CorrelationID groups a causally related interaction.
	CorrelationID string `json:"correlationId,omitempty"`

	// CausationID is the ID of the prior command or event that caused this one.
	CausationID string `json:"causationId,omitempty"`

	// UserID identifies the principal that issued the command.
	UserID string `json:"userId,omitempty"`

	// Timestamp is when the command was issued. The server stamps it on
	// persistence when the client leaves it empty.
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// NewMetadata returns a metadata envelope with a fresh ID and the ID
// doubling as the correlation ID, for interactions that start here.
func NewMetadata() Metadata {
	id := uuid.NewString()
	return Metadata{
		ID:            id,
		CorrelationID: id,
		Timestamp:     Now(),
	}
}

// Derive returns metadata for something caused by m: a fresh ID, the same
// correlation ID, and m's ID as the causation ID.
func (m Metadata) Derive() Metadata {
	return Metadata{
		ID:            uuid.NewString(),
		CorrelationID: m.CorrelationID,
		CausationID:   m.ID,
		UserID:        m.UserID,
		Timestamp:     Now(),
	}
}

// Fill populates absent fields in place: a missing ID is generated, a
// missing correlation ID defaults to the ID, a zero timestamp is stamped.
func (m *Metadata) Fill() {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CorrelationID == "" {
		m.CorrelationID = m.ID
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = Now()
	}
}
