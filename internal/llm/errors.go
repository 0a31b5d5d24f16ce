package llm

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies completion failures. The kind decides both the
// retry policy (inside this package) and the user-facing message (at the
// orchestrator boundary).
type ErrorKind int

const (
	// KindUnauthorized is an authorization or entitlement failure.
	// Retrying will not help.
	KindUnauthorized ErrorKind = iota

	// KindRateLimited is a rate-limit response. Retried with backoff,
	// honoring any Retry-After hint.
	KindRateLimited

	// KindTimeout is a bounded-wait expiry. Retried with backoff.
	KindTimeout

	// KindBadResponse is a 2xx response whose body was empty or
	// undecodable. Not retried; the raw payload is logged server-side
	// and never echoed to the client.
	KindBadResponse

	// KindTransport is any other transport-level failure. Retried as a
	// timeout is.
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindBadResponse:
		return "bad_response"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// retryable reports whether another attempt could plausibly succeed.
func (k ErrorKind) retryable() bool {
	switch k {
	case KindRateLimited, KindTimeout, KindTransport:
		return true
	}
	return false
}

// APIError is a classified completion failure.
type APIError struct {
	Kind    ErrorKind
	Status  int    // HTTP status, when one was received
	Message string // short diagnostic, safe to log

	// RetryAfter is the server-provided backoff hint for rate limits,
	// zero when absent.
	RetryAfter time.Duration

	Err error // underlying cause, when any
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("completion %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("completion %s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// KindOf extracts the classification from an error chain. The second
// return is false when err carries no *APIError.
func KindOf(err error) (ErrorKind, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}
