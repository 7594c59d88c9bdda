package subprocess

import (
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePOSIX(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell environment")
	}
}

func requireBinary(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not on PATH", name)
	}
	return path
}

// S1: capturing a sort over piped-in lines returns them sorted.
func TestCaptureSortsStdin(t *testing.T) {
	requirePOSIX(t)
	path := requireBinary(t, "sort")

	job, err := Launch(Config{
		Path:   path,
		Stdin:  Pipe{},
		Stdout: Pipe{},
	})
	require.NoError(t, err)
	defer job.Close()

	stdout, _, status, err := job.Capture(BytesInput("b\nc\na\n"), 0)
	require.NoError(t, err)
	assert.True(t, status.Success())
	assert.Equal(t, "a\nb\nc\n", string(stdout))
}

// S2: wait_timeout on a long-running process times out, then terminate
// followed by wait reports a non-success status with no zombie left.
func TestWaitTimeoutThenTerminate(t *testing.T) {
	requirePOSIX(t)
	path := requireBinary(t, "sleep")

	job, err := Launch(Config{Path: path, Args: []string{"10"}})
	require.NoError(t, err)
	defer job.Close()

	_, ok := job.WaitTimeout(50 * time.Millisecond)
	assert.False(t, ok)

	require.NoError(t, job.Terminate())
	status := job.Wait()
	assert.False(t, status.Success())
}

// S3: a two-stage pipeline behaves like a shell pipe.
func TestPipelineEchoToUpper(t *testing.T) {
	requirePOSIX(t)
	echoPath := requireBinary(t, "echo")
	trPath := requireBinary(t, "tr")

	job, err := LaunchPipeline(PipelineConfig{
		Commands: []Config{
			{Path: echoPath, Args: []string{"hello"}},
			{Path: trPath, Args: []string{"a-z", "A-Z"}, Stdout: Pipe{}},
		},
	})
	require.NoError(t, err)
	defer job.Close()

	stdout, _, status, err := job.Capture(nil, 0)
	require.NoError(t, err)
	assert.True(t, status.Success())
	assert.Equal(t, "HELLO\n", string(stdout))
	assert.Len(t, job.Processes(), 2)
}

// S4: a size cap truncates stdout without deadlocking the writer side.
func TestCaptureSizeCap(t *testing.T) {
	requirePOSIX(t)
	path := requireBinary(t, "cat")

	job, err := Launch(Config{Path: path, Stdin: Pipe{}, Stdout: Pipe{}})
	require.NoError(t, err)
	defer job.Close()

	big := make([]byte, 4*1024*1024)
	stdout, _, _, err := job.CaptureTimeout(5*time.Second, BytesInput(big), 1024)
	require.NoError(t, err)
	assert.Len(t, stdout, 1024)
}

// S5: launching a nonexistent binary fails with NotFound and leaks no
// process.
func TestLaunchNotFound(t *testing.T) {
	_, err := Launch(Config{Path: "subprocess-test-nonexistent-binary-xyz"})
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, NotFound, se.Kind)
}

func TestEmptyPipelineSucceedsImmediately(t *testing.T) {
	job, err := LaunchPipeline(PipelineConfig{})
	require.NoError(t, err)
	defer job.Close()

	status := job.Wait()
	assert.True(t, status.Success())
	assert.Empty(t, job.Processes())
}

func TestCheckedConvertsNonSuccess(t *testing.T) {
	requirePOSIX(t)
	path := requireBinary(t, "sh")

	job, err := Launch(Config{Path: path, Args: []string{"-c", "exit 3"}, Checked: true})
	require.NoError(t, err)
	defer job.Close()

	_, err = job.Join()
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, Other, se.Kind)
}

func TestDetachSuppressesClose(t *testing.T) {
	requirePOSIX(t)
	path := requireBinary(t, "sleep")

	job, err := Launch(Config{Path: path, Args: []string{"0.05"}})
	require.NoError(t, err)
	job.Detach()
	assert.NoError(t, job.Close())
}
