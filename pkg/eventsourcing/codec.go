package eventsourcing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Codec is the single process-wide JSON policy: camelCase property names
// via struct tags, optional values as present-or-absent fields. It is
// passed explicitly to the store adapter and the queue adapter so no
// component invents its own serialization.
type Codec struct {
	// strict rejects unknown fields when decoding command payloads.
	strict bool
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithStrictDecoding rejects unknown fields in command payloads.
func WithStrictDecoding() CodecOption {
	return func(c *Codec) { c.strict = true }
}

// NewCodec creates the shared JSON codec.
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Marshal serializes v under the shared policy.
func (c *Codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal deserializes data into v under the shared policy.
func (c *Codec) Unmarshal(data []byte, v any) error {
	if c.strict {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(v)
	}
	return json.Unmarshal(data, v)
}

// Instantiate allocates a fresh value of t and decodes data into it.
// t must be the struct type of a registered variant; the returned value
// is a pointer to it.
func (c *Codec) Instantiate(t reflect.Type, data []byte) (any, error) {
	v := reflect.New(t).Interface()
	if len(data) > 0 {
		if err := c.Unmarshal(data, v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
	}
	return v, nil
}
