// Package validators provides field-level command validation with
// user-facing messages. Commands aggregate results into a single error
// the middleware turns into a bad-command rejection.
package validators

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationCode classifies a validation outcome.
type ValidationCode string

const (
	ValidationCodeSuccess  ValidationCode = "success"
	ValidationCodeRequired ValidationCode = "required"
	ValidationCodeInvalid  ValidationCode = "invalid"
)

// ValidationResult is the outcome of validating one field.
type ValidationResult struct {
	IsValid   bool           `json:"isValid"`
	FieldName string         `json:"fieldName"`
	Value     string         `json:"value,omitempty"`
	Message   string         `json:"message,omitempty"`
	Code      ValidationCode `json:"code"`
}

// Err returns the result as an error, nil when valid.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return errors.New(r.Message)
}

// Results collects per-field outcomes.
type Results []*ValidationResult

// HasErrors reports whether any field failed.
func (rs Results) HasErrors() bool {
	for _, r := range rs {
		if !r.IsValid {
			return true
		}
	}
	return false
}

// Err joins all failures into one error, nil when everything passed.
func (rs Results) Err() error {
	var msgs []string
	for _, r := range rs {
		if !r.IsValid {
			msgs = append(msgs, fmt.Sprintf("%s: %s", r.FieldName, r.Message))
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return errors.New(strings.Join(msgs, "; "))
}

func valid(fieldName, value string) *ValidationResult {
	return &ValidationResult{
		IsValid:   true,
		FieldName: fieldName,
		Value:     value,
		Code:      ValidationCodeSuccess,
	}
}

func invalid(fieldName, value, message string, code ValidationCode) *ValidationResult {
	return &ValidationResult{
		FieldName: fieldName,
		Value:     value,
		Message:   message,
		Code:      code,
	}
}

// ToUserFriendlyName converts a camelCase or snake_case field name to a
// readable label: "emailAddress" and "email_address" both become
// "Email address".
func ToUserFriendlyName(fieldName string) string {
	if fieldName == "" {
		return fieldName
	}
	var words []string
	var current strings.Builder
	for _, r := range fieldName {
		switch {
		case r == '_':
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		case r >= 'A' && r <= 'Z':
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
			current.WriteRune(r + ('a' - 'A'))
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}
	out := strings.Join(words, " ")
	return strings.ToUpper(out[:1]) + out[1:]
}
