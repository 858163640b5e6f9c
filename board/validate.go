package board

import "strings"

// Field length caps, matching the public API contract.
const (
	maxBoardNameLen   = 140
	maxColumnNameLen  = 80
	maxCardTitleLen   = 200
	maxDescriptionLen = 2000
)

// requiredText trims the value and validates it as a non-empty bounded field.
func requiredText(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if len(value) > max {
		return "", &ValidationError{Field: field, Reason: "too long"}
	}
	return value, nil
}

// optionalText trims the value and validates its length. Empty is allowed.
func optionalText(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if len(value) > max {
		return "", &ValidationError{Field: field, Reason: "too long"}
	}
	return value, nil
}
