package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed request.
type Kind string

const (
	KindNetwork      Kind = "NETWORK_ERROR"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindNotFound     Kind = "NOT_FOUND"
	KindValidation   Kind = "VALIDATION_ERROR"
	KindServer       Kind = "SERVER_ERROR"
	KindTimeout      Kind = "TIMEOUT"
	KindUnknown      Kind = "UNKNOWN_ERROR"
)

var defaultMessages = map[Kind]string{
	KindNetwork:      "Network error. Please check your connection.",
	KindUnauthorized: "Your session has expired. Please sign in again.",
	KindForbidden:    "You do not have permission to perform this action.",
	KindNotFound:     "The requested resource was not found.",
	KindValidation:   "The request was invalid. Please check your input.",
	KindServer:       "The server encountered an error. Please try again later.",
	KindTimeout:      "The request timed out. Please try again.",
	KindUnknown:      "An unexpected error occurred.",
}

// DefaultMessage returns the built-in user-facing message for kind.
func DefaultMessage(kind Kind) string {
	if msg, ok := defaultMessages[kind]; ok {
		return msg
	}
	return defaultMessages[KindUnknown]
}

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status >= 500 && status <= 599:
		return KindServer
	default:
		return KindUnknown
	}
}

// Error is the only error type the client returns for a failed call.
type Error struct {
	Kind Kind

	// Message is safe to show to the user. The backend's message wins over
	// the built-in default.
	Message string

	// Status is the HTTP status code, or 0 when no response arrived.
	Status int

	// Code is the backend's machine-readable error code, if it sent one.
	Code string

	// Details is the backend's opaque diagnostic payload.
	Details any

	// Err is the underlying transport error for network and timeout kinds.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("[%s] %s (status %d)", e.Kind, e.Message, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error of kind with message, falling back to the
// default message when message is empty.
func NewError(kind Kind, message string) *Error {
	if message == "" {
		message = DefaultMessage(kind)
	}
	return &Error{Kind: kind, Message: message}
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsKind reports whether err (or any error in its chain) is an *Error of
// the given kind.
func IsKind(err error, kind Kind) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == kind
}

// IsUnauthorized is shorthand for IsKind(err, KindUnauthorized).
func IsUnauthorized(err error) bool {
	return IsKind(err, KindUnauthorized)
}
