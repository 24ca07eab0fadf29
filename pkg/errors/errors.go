// Package errors carries typed API errors that map onto HTTP statuses.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Standard error functions
var (
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string `json:"field"`
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

func (f FieldError) Error() string {
	return fmt.Sprintf("%s (%s): %s", f.Field, f.Kind, f.Message)
}

// Error is a custom error type for passing more information
type Error struct {
	// Kind is a stable machine readable code, e.g. "not_found".
	Kind string `json:"kind"`
	// Message is the human readable string returned to clients.
	Message string `json:"message"`
	// Fields is set when validation failed for one or more fields.
	Fields []FieldError `json:"fields,omitempty"`

	status int
	cause  error
}

var _ error = (*Error)(nil)

func newKind(status int, kind string) *Error {
	return &Error{Kind: kind, Message: lowerStatusText(status), status: status}
}

var (
	Invalid         = newKind(http.StatusBadRequest, "invalid")
	Unauthorized    = newKind(http.StatusUnauthorized, "unauthorized")
	Forbidden       = newKind(http.StatusForbidden, "forbidden")
	NotFound        = newKind(http.StatusNotFound, "not_found")
	Conflict        = newKind(http.StatusConflict, "conflict")
	TooLarge        = newKind(http.StatusRequestEntityTooLarge, "too_large")
	TooManyRequests = newKind(http.StatusTooManyRequests, "rate_limited")
	Internal        = newKind(http.StatusInternalServerError, "internal")
	BadGateway      = newKind(http.StatusBadGateway, "bad_gateway")
	Unavailable     = newKind(http.StatusServiceUnavailable, "unavailable")
)

// Error implements error
func (e *Error) Error() string {
	str := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.cause != nil {
		str += fmt.Sprintf(" (%s)", e.cause)
	}
	return str
}

// Status returns the HTTP status code of the error.
func (e *Error) Status() int {
	if e.status == 0 {
		return http.StatusInternalServerError
	}
	return e.status
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Wrap returns a copy of the error with the cause set
func (e *Error) Wrap(cause error) *Error {
	err := *e
	err.cause = cause
	return &err
}

// Explain makes a copy of the error with given message
func (e *Error) Explain(message string, args ...any) *Error {
	err := *e
	err.Message = fmt.Sprintf(message, args...)
	return &err
}

// Reason returns a copy of the error with kind set to given value
func (e *Error) Reason(kind string) *Error {
	err := *e
	err.Kind = kind
	return &err
}

// WithField returns a copy of the error with one more field error appended.
func (e *Error) WithField(field, kind, message string) *Error {
	err := *e
	err.Fields = append(append([]FieldError(nil), e.Fields...), FieldError{Field: field, Kind: kind, Message: message})
	return &err
}

// Is matches on status so that Explain and Reason copies still satisfy
// errors.Is(err, errors.NotFound).
func (e *Error) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	if other, ok := target.(*Error); ok {
		return other.status == e.status
	}
	return false
}

// StatusOf resolves the HTTP status for any error. Errors outside this
// package are internal.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var e *Error
	if As(err, &e) {
		return e.Status()
	}
	return http.StatusInternalServerError
}

func lowerStatusText(code int) string {
	return strings.ToLower(http.StatusText(code))
}
