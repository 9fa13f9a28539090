package validators

import (
	"fmt"

	"github.com/asaskevich/govalidator"
)

// ValidateRequired checks that a string field is present.
func ValidateRequired(fieldName, value string) *ValidationResult {
	if value == "" {
		return invalid(fieldName, value,
			fmt.Sprintf("%s is required", ToUserFriendlyName(fieldName)),
			ValidationCodeRequired)
	}
	return valid(fieldName, value)
}

// ValidateLength checks a string field against length bounds.
func ValidateLength(fieldName, value string, minLen, maxLen int) *ValidationResult {
	name := ToUserFriendlyName(fieldName)
	if len(value) < minLen {
		return invalid(fieldName, value,
			fmt.Sprintf("%s must be at least %d characters", name, minLen),
			ValidationCodeInvalid)
	}
	if maxLen > 0 && len(value) > maxLen {
		return invalid(fieldName, value,
			fmt.Sprintf("%s must be at most %d characters", name, maxLen),
			ValidationCodeInvalid)
	}
	return valid(fieldName, value)
}

// ValidateEmail checks that a field holds a well-formed email address.
func ValidateEmail(fieldName, value string) *ValidationResult {
	if value == "" {
		return invalid(fieldName, value,
			fmt.Sprintf("%s is required", ToUserFriendlyName(fieldName)),
			ValidationCodeRequired)
	}
	if !govalidator.IsEmail(value) {
		return invalid(fieldName, value,
			fmt.Sprintf("%s is not a valid email address", ToUserFriendlyName(fieldName)),
			ValidationCodeInvalid)
	}
	return valid(fieldName, value)
}

// ValidateUUID checks that a field holds a UUID.
func ValidateUUID(fieldName, value string) *ValidationResult {
	if value == "" {
		return invalid(fieldName, value,
			fmt.Sprintf("%s is required", ToUserFriendlyName(fieldName)),
			ValidationCodeRequired)
	}
	if !govalidator.IsUUID(value) {
		return invalid(fieldName, value,
			fmt.Sprintf("%s is not a valid UUID", ToUserFriendlyName(fieldName)),
			ValidationCodeInvalid)
	}
	return valid(fieldName, value)
}

// ValidateNumeric checks that a field holds a decimal number.
func ValidateNumeric(fieldName, value string) *ValidationResult {
	if value == "" {
		return invalid(fieldName, value,
			fmt.Sprintf("%s is required", ToUserFriendlyName(fieldName)),
			ValidationCodeRequired)
	}
	if !govalidator.IsFloat(value) && !govalidator.IsInt(value) {
		return invalid(fieldName, value,
			fmt.Sprintf("%s is not a number", ToUserFriendlyName(fieldName)),
			ValidationCodeInvalid)
	}
	return valid(fieldName, value)
}

// MaskString hides all but the last four characters, for logging
// sensitive values.
func MaskString(value string) string {
	if len(value) < 4 {
		return "************"
	}
	masked := make([]byte, len(value)-4)
	for i := range masked {
		masked[i] = '*'
	}
	return string(masked) + value[len(value)-4:]
}
