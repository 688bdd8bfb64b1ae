// Package errors gives every territory error a machine-readable code.
//
// Codes travel with the error through wrapping, so the store can count
// dropped events by reason, the CLI can print a short message and the HTTP
// API can pick a status without string matching.
//
//	err := errors.New(errors.ErrCodeUnknownZone, "zone %q is not configured", id)
//	if errors.Is(err, errors.ErrCodeUnknownZone) {
//	    // drop the event
//	}
//
//	err = errors.Wrap(errors.ErrCodeNetwork, err, "subscribe to %s", channel)
//
// [Is] matches a code anywhere in the chain; [GetCode] reports the
// outermost one.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error category.
type Code string

const (
	// Rejected input
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeMalformedEvent Code = "MALFORMED_EVENT"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"
	ErrCodeInvalidPath    Code = "INVALID_PATH"

	// Missing resources
	ErrCodeNotFound    Code = "NOT_FOUND"
	ErrCodeUnknownZone Code = "UNKNOWN_ZONE"

	// Feeds and caches
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Computation
	ErrCodeLayoutFailure Code = "LAYOUT_FAILURE"
	ErrCodeInternal      Code = "INTERNAL_ERROR"
	ErrCodeUnsupported   Code = "UNSUPPORTED"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New returns an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap returns an Error whose cause is cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether any *Error in err's chain carries code.
func Is(err error, code Code) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode returns the code of the outermost *Error in err's chain, or ""
// when there is none.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the message of the outermost *Error without its code
// prefix, or err.Error() for other errors.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// StatusCode maps err's code to the HTTP status the API answers with.
func StatusCode(err error) int {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeMalformedEvent, ErrCodeInvalidConfig, ErrCodeInvalidPath:
		return http.StatusBadRequest
	case ErrCodeNotFound, ErrCodeUnknownZone:
		return http.StatusNotFound
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeNetwork:
		return http.StatusBadGateway
	case ErrCodeUnsupported:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}
