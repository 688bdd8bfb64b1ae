package errors

import (
	"math"
	"strings"
	"unicode"
)

// maxIDLength bounds entity and zone identifiers.
const maxIDLength = 256

// ValidateID validates an entity or zone identifier coming from a feed or a
// configuration file. kind is used in the message ("entity", "zone").
//
// The validation rules are intentionally conservative:
//   - No empty identifiers
//   - No control characters or null bytes
//   - No surrounding whitespace
//   - Maximum length of 256 characters
func ValidateID(kind, id string) error {
	if id == "" {
		return New(ErrCodeMalformedEvent, "%s id cannot be empty", kind)
	}

	if len(id) > maxIDLength {
		return New(ErrCodeMalformedEvent, "%s id too long (max %d characters)", kind, maxIDLength)
	}

	for _, r := range id {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeMalformedEvent, "%s id contains invalid control characters", kind)
		}
	}

	if strings.TrimSpace(id) != id {
		return New(ErrCodeMalformedEvent, "%s id has leading or trailing whitespace", kind)
	}

	return nil
}

// ValidateWeight rejects negative, NaN and infinite weights.
func ValidateWeight(w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return New(ErrCodeMalformedEvent, "weight must be a finite number")
	}
	if w < 0 {
		return New(ErrCodeMalformedEvent, "weight must be non-negative, got %v", w)
	}
	return nil
}

// ValidatePath validates a file path given on the command line or in a
// configuration file.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}
