package subprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRedirectionMerge(t *testing.T) {
	assert.NoError(t, validateRedirection(Stdout, Merge{Into: Stderr}))
	assert.NoError(t, validateRedirection(Stderr, Merge{Into: Stdout}))
	assert.True(t, IsInvalidInput(validateRedirection(Stdin, Merge{Into: Stdout})))
	assert.True(t, IsInvalidInput(validateRedirection(Stdout, Merge{Into: Stdout})))
}

func TestValidateRedirectionStreamPositions(t *testing.T) {
	assert.NoError(t, validateRedirection(Stdin, StreamIn{}))
	assert.True(t, IsInvalidInput(validateRedirection(Stdout, StreamIn{})))

	assert.NoError(t, validateRedirection(Stdout, StreamOut{}))
	assert.NoError(t, validateRedirection(Stderr, StreamOut{}))
	assert.True(t, IsInvalidInput(validateRedirection(Stdin, StreamOut{})))
}

func TestStreamIDString(t *testing.T) {
	assert.Equal(t, "stdin", Stdin.String())
	assert.Equal(t, "stdout", Stdout.String())
	assert.Equal(t, "stderr", Stderr.String())
}
