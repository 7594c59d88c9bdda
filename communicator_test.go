package subprocess

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommunicateEchoRoundTrip(t *testing.T) {
	requirePOSIX(t)
	path := requireBinary(t, "cat")

	job, err := Launch(Config{Path: path, Stdin: Pipe{}, Stdout: Pipe{}})
	require.NoError(t, err)
	defer job.Close()

	res, err := job.Communicate(WithInput(BytesInput("round trip")), WithTimeout(5*time.Second)).Run()
	require.NoError(t, err)
	assert.Equal(t, "round trip", string(res.Stdout))
	assert.False(t, res.StdoutCapped)
}

func TestStreamOutRedirection(t *testing.T) {
	requirePOSIX(t)
	path := requireBinary(t, "echo")

	var out bytes.Buffer
	job, err := Launch(Config{Path: path, Args: []string{"piped"}, Stdout: StreamOut{W: &out}})
	require.NoError(t, err)

	_, err = job.Join()
	require.NoError(t, err)
	assert.Equal(t, "piped\n", out.String())
}

func TestStreamInRedirection(t *testing.T) {
	requirePOSIX(t)
	path := requireBinary(t, "cat")

	job, err := Launch(Config{Path: path, Stdin: StreamIn{R: bytes.NewReader([]byte("from reader"))}, Stdout: Pipe{}})
	require.NoError(t, err)
	defer job.Close()

	stdout, _, status, err := job.Capture(nil, 0)
	require.NoError(t, err)
	assert.True(t, status.Success())
	assert.Equal(t, "from reader", string(stdout))
}

func TestMergeStderrIntoStdout(t *testing.T) {
	requirePOSIX(t)
	path := requireBinary(t, "sh")

	job, err := Launch(Config{
		Path:   path,
		Args:   []string{"-c", "echo out; echo err 1>&2"},
		Stdout: Pipe{},
		Stderr: Merge{Into: Stdout},
	})
	require.NoError(t, err)
	defer job.Close()

	stdout, stderr, status, err := job.Capture(nil, 0)
	require.NoError(t, err)
	assert.True(t, status.Success())
	assert.Nil(t, stderr)
	assert.Contains(t, string(stdout), "out")
	assert.Contains(t, string(stdout), "err")
}
