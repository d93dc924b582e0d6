package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures at component boundaries. Raw provider
// errors never cross the pipeline: they are wrapped into one of these kinds
// before the conversation layer sees them.
type ErrorKind string

const (
	// ErrSchemaViolation: generation output failed validation after retry.
	// Recovered locally by substituting a generic clarification request.
	ErrSchemaViolation ErrorKind = "SCHEMA_VIOLATION"

	// ErrUpstreamUnavailable: catalog or generation provider unreachable or
	// timed out after retry. Surfaced to the caller as a distinguishable
	// condition, never mapped to "no results".
	ErrUpstreamUnavailable ErrorKind = "UPSTREAM_UNAVAILABLE"

	// ErrInvalidConstraints: the merged constraint set is inconsistent
	// (e.g. budget minimum above maximum). Recovered by re-prompting.
	ErrInvalidConstraints ErrorKind = "INVALID_CONSTRAINTS"
)

// Error carries the kind, a short machine-readable reason, and the cause.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("service: %s (%s)", e.Kind, e.Reason)
	}
	return fmt.Sprintf("service: %s (%s): %v", e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind ErrorKind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// IsKind reports whether err (or anything it wraps) is a service Error of the
// given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Kind == kind
}
