package subprocess

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollIdempotentAfterWait(t *testing.T) {
	requirePOSIX(t)
	path := requireBinary(t, "true")

	job, err := Launch(Config{Path: path})
	require.NoError(t, err)
	defer job.Close()

	p := job.Processes()[0]
	status := p.Wait()
	assert.True(t, status.Success())

	s2, ok := p.Poll()
	require.True(t, ok)
	assert.Equal(t, status, s2)

	s3 := p.Wait()
	assert.Equal(t, status, s3)
}

func TestCloneSharesHandle(t *testing.T) {
	requirePOSIX(t)
	path := requireBinary(t, "true")

	job, err := Launch(Config{Path: path})
	require.NoError(t, err)
	defer job.Close()

	p := job.Processes()[0]
	clone := p.Clone()
	assert.Same(t, p, clone)
	assert.Equal(t, p.Pid(), clone.Pid())
}

func TestWaitTimeoutNeverExtendsDeadline(t *testing.T) {
	requirePOSIX(t)
	path := requireBinary(t, "sleep")

	job, err := Launch(Config{Path: path, Args: []string{"1"}})
	require.NoError(t, err)
	defer job.Close()

	p := job.Processes()[0]
	start := time.Now()
	_, ok := p.WaitTimeout(30 * time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.Less(t, elapsed, 500*time.Millisecond)
}
