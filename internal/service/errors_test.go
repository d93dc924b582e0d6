package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKind(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := newError(ErrUpstreamUnavailable, "catalog_fetch_failed", cause)

	assert.True(t, IsKind(err, ErrUpstreamUnavailable))
	assert.False(t, IsKind(err, ErrSchemaViolation))
	assert.False(t, IsKind(cause, ErrUpstreamUnavailable))
	assert.False(t, IsKind(nil, ErrUpstreamUnavailable))

	// Wrapping preserves the kind.
	wrapped := fmt.Errorf("turn failed: %w", err)
	assert.True(t, IsKind(wrapped, ErrUpstreamUnavailable))
	assert.ErrorIs(t, wrapped, cause)
}

func TestErrorString(t *testing.T) {
	withCause := newError(ErrSchemaViolation, "generation_output_invalid", errors.New("bad json"))
	assert.Equal(t, "service: SCHEMA_VIOLATION (generation_output_invalid): bad json", withCause.Error())

	bare := newError(ErrInvalidConstraints, "budget_range_empty", nil)
	assert.Equal(t, "service: INVALID_CONSTRAINTS (budget_range_empty)", bare.Error())
}
