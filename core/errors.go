package core

import (
	"errors"
	"fmt"
)

// Kind classifies every failure a caller of the client layer can observe.
type Kind int

const (
	// KindNetwork means the request never completed.
	KindNetwork Kind = iota + 1
	// KindAPI means the remote API answered with a non-2xx status.
	KindAPI
	// KindForbidden means the ownership gate refused a mutation.
	KindForbidden
	// KindNotFound means the resource is absent.
	KindNotFound
	// KindValidation means the input was rejected before any request was made.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network_failure"
	case KindAPI:
		return "api_error"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_error"
	default:
		return "unknown"
	}
}

// Error carries a Kind and a message that is safe to show to the user.
type Error struct {
	Kind Kind

	// Status is the HTTP status for KindAPI and KindNotFound errors, 0 otherwise.
	Status int

	// Message is display-ready.
	Message string

	// Err holds the underlying cause for logging.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewNetwork wraps a transport failure.
func NewNetwork(err error) *Error {
	return &Error{Kind: KindNetwork, Message: "Network error: could not reach the server", Err: err}
}

// NewAPI creates an error for a non-2xx response.
func NewAPI(status int, message string) *Error {
	return &Error{Kind: KindAPI, Status: status, Message: message}
}

// NewForbidden creates an ownership-gate refusal.
func NewForbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NewNotFound creates a missing-resource error.
func NewNotFound(status int, message string) *Error {
	return &Error{Kind: KindNotFound, Status: status, Message: message}
}

// NewValidation creates a client-side input rejection.
func NewValidation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// KindOf returns the Kind of err, or 0 when err is nil or not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the display-ready message of err. Errors that did not come
// through this package are shown as fallback, or verbatim when fallback is empty.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if fallback != "" {
		return fallback
	}
	return err.Error()
}
