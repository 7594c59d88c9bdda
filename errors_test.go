package subprocess

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &Error{Kind: Other, Op: "launch", Err: inner}
	require.ErrorIs(t, err, inner)
}

func TestIsTimeoutAndIsInvalidInput(t *testing.T) {
	timeout := &Error{Kind: TimedOut, Op: "communicate"}
	invalid := &Error{Kind: InvalidInput, Op: "launch"}

	assert.True(t, IsTimeout(timeout))
	assert.False(t, IsTimeout(invalid))
	assert.True(t, IsInvalidInput(invalid))
	assert.False(t, IsInvalidInput(timeout))
	assert.False(t, IsTimeout(errors.New("plain")))
}
