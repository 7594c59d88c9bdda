package subprocess

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job owns the parent-side pipe endpoints and the ordered Process
// handles produced by a single Launch/LaunchPipeline call. Pipe access
// and Communicator construction belong to a single goroutine; any
// cloned Process may be waited on or signaled from elsewhere.
type Job struct {
	id uuid.UUID

	stdin  *StreamHandle
	stdout *StreamHandle
	stderr *StreamHandle

	procs []*Process

	checked  bool
	detached atomic.Bool

	log   *zap.Logger
	now   func() time.Time
	grace time.Duration

	// copyWG tracks background goroutines servicing StreamIn/StreamOut
	// redirections; Close and Join wait for them so no data is lost
	// racing the Job's own teardown.
	copyWG sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

func newJob(id uuid.UUID, stdin, stdout, stderr *StreamHandle, procs []*Process, checked bool, jo jobOptions, log *zap.Logger) *Job {
	j := &Job{
		id:      id,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		procs:   procs,
		checked: checked,
		log:     log.Named("job"),
		now:     jo.now,
		grace:   jo.grace,
	}
	runtime.SetFinalizer(j, func(j *Job) { j.Close() })
	return j
}

// ID returns the Job's log-correlation identifier.
func (j *Job) ID() string { return j.id.String() }

// Stdin returns the write end of the Job's stdin pipe, or nil if stdin
// was not redirected to a Pipe.
func (j *Job) Stdin() *StreamHandle { return j.stdin }

// Stdout returns the read end of the Job's stdout pipe, or nil.
func (j *Job) Stdout() *StreamHandle { return j.stdout }

// Stderr returns the read end of the Job's stderr pipe, or nil.
func (j *Job) Stderr() *StreamHandle { return j.stderr }

// Processes returns a copy of the ordered process list: length 1 for a
// single command, N for an N-stage pipeline.
func (j *Job) Processes() []*Process {
	out := make([]*Process, len(j.procs))
	copy(out, j.procs)
	return out
}

// Wait blocks until every process has terminated, returning the last
// process's status (matching shell pipeline semantics).
func (j *Job) Wait() ExitStatus {
	var last ExitStatus
	if len(j.procs) == 0 {
		return emptyPipelineStatus
	}
	for _, p := range j.procs {
		last = p.Wait()
	}
	return last
}

// emptyPipelineStatus is what an empty pipeline's Job reports: per
// spec, launching nothing is permitted and waiting on it yields
// success immediately.
var emptyPipelineStatus = ExitStatus{valid: true, hasCode: true, exitCode: 0}

// WaitTimeout blocks until every process has terminated or the
// duration elapses. The deadline is captured once at entry and applies
// across all processes in the list, not per-process.
func (j *Job) WaitTimeout(d time.Duration) (ExitStatus, bool) {
	if len(j.procs) == 0 {
		return emptyPipelineStatus, true
	}
	deadline := j.now().Add(d)
	var last ExitStatus
	for _, p := range j.procs {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		s, ok := p.WaitTimeout(remaining)
		if !ok {
			return ExitStatus{}, false
		}
		last = s
	}
	return last, true
}

// Terminate sends terminate to every process in the Job.
func (j *Job) Terminate() error { return j.forEachProcess((*Process).Terminate) }

// Kill sends kill to every process in the Job.
func (j *Job) Kill() error { return j.forEachProcess((*Process).Kill) }

func (j *Job) forEachProcess(fn func(*Process) error) error {
	var first error
	for _, p := range j.procs {
		if err := fn(p); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Detach suppresses the on-Close/on-finalize reap: the processes are
// no longer this Job's responsibility.
func (j *Job) Detach() { j.detached.Store(true) }

// Join closes stdin if open, waits every process, and applies the
// checked() conversion.
func (j *Job) Join() (ExitStatus, error) {
	if j.stdin != nil {
		j.stdin.Close()
	}
	status := j.Wait()
	j.copyWG.Wait()
	return status, j.checkStatus(status)
}

// Communicate exposes a Communicator built over this Job's streams.
func (j *Job) Communicate(opts ...CommOption) *Communicator {
	return newCommunicator(j, opts...)
}

// Capture drives a Communicator to completion (no deadline), reaps the
// Job, and returns the collected output alongside the checked() exit
// status conversion.
func (j *Job) Capture(in InputSource, maxBytes int64) ([]byte, []byte, ExitStatus, error) {
	return j.captureWithOptions(WithInput(in), WithMaxBytes(maxBytes))
}

// CaptureTimeout is Capture bounded by a deadline; on expiry the
// returned error is a TimedOut *Error carrying the partial output.
func (j *Job) CaptureTimeout(d time.Duration, in InputSource, maxBytes int64) ([]byte, []byte, ExitStatus, error) {
	return j.captureWithOptions(WithInput(in), WithMaxBytes(maxBytes), WithTimeout(d))
}

func (j *Job) captureWithOptions(opts ...CommOption) ([]byte, []byte, ExitStatus, error) {
	c := j.Communicate(opts...)
	res, err := c.Run()
	if err != nil {
		return res.Stdout, res.Stderr, ExitStatus{}, err
	}
	status := j.Wait()
	j.copyWG.Wait()
	if cerr := j.checkStatus(status); cerr != nil {
		return res.Stdout, res.Stderr, status, cerr
	}
	return res.Stdout, res.Stderr, status, nil
}

// Close implements the on-drop reap policy: if the Job was detached
// this is a no-op; otherwise stdin is closed, all processes are waited
// on up to a bounded grace, then terminate and kill are applied in
// turn, each with its own grace, guaranteeing no zombie is left behind
// without blocking unboundedly.
func (j *Job) Close() error {
	j.closeOnce.Do(func() {
		runtime.SetFinalizer(j, nil)
		if j.detached.Load() {
			return
		}
		if j.stdin != nil {
			j.stdin.Close()
		}

		done := make(chan struct{})
		go func() { j.Wait(); close(done) }()

		select {
		case <-done:
		case <-time.After(j.grace):
			j.log.Warn("close grace expired, escalating to terminate", zap.String("job_id", j.id.String()))
			j.Terminate()
			select {
			case <-done:
			case <-time.After(j.grace):
				j.log.Warn("terminate grace expired, escalating to kill", zap.String("job_id", j.id.String()))
				j.Kill()
				<-done
			}
		}

		j.copyWG.Wait()
		if j.stdout != nil {
			j.stdout.Close()
		}
		if j.stderr != nil {
			j.stderr.Close()
		}
	})
	return j.closeErr
}
