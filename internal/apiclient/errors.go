package apiclient

import (
	"errors"
	"fmt"
)

// Failure classes reported by the client. Every error returned by Client
// is an *Error that matches exactly one of these with errors.Is.
var (
	ErrSessionExpired         = errors.New("session expired")
	ErrInsufficientPermission = errors.New("insufficient permission")
	ErrUpstreamFailure        = errors.New("upstream failure")
	ErrUnreachable            = errors.New("upstream unreachable")
	ErrRequestInvalid         = errors.New("invalid request")
	ErrUpstreamRejected       = errors.New("request rejected by upstream")
)

// Error is the single tagged failure type of the client.
type Error struct {
	Kind    error // one of the Err* sentinels above
	Method  string
	Path    string
	Status  int    // 0 when no response was received
	Message string // upstream message, if the body carried one
	Err     error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Method != "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, msg)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StatusCode returns the upstream HTTP status, or 0 when none was received.
func (e *Error) StatusCode() int {
	return e.Status
}

// UserMessage returns the text to show the operator: the upstream message
// when there is one, otherwise a description of the failure class.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	switch {
	case errors.Is(e.Kind, ErrSessionExpired):
		return "Your session has expired. Please sign in again."
	case errors.Is(e.Kind, ErrInsufficientPermission):
		return "You do not have permission to view this data."
	case errors.Is(e.Kind, ErrUnreachable):
		return "The finance API could not be reached."
	case errors.Is(e.Kind, ErrRequestInvalid):
		return "The request could not be built."
	case errors.Is(e.Kind, ErrUpstreamRejected):
		return "The finance API rejected the request."
	default:
		return "The finance API failed to answer."
	}
}

// KindName returns a short stable label for the error class, used in metrics.
func KindName(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrInsufficientPermission):
		return "insufficient_permission"
	case errors.Is(err, ErrUpstreamFailure):
		return "upstream_failure"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	case errors.Is(err, ErrRequestInvalid):
		return "request_invalid"
	case errors.Is(err, ErrUpstreamRejected):
		return "upstream_rejected"
	default:
		return "unknown"
	}
}
