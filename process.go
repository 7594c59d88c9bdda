package subprocess

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Process is an immutable handle to one launched OS process: its pid,
// its requested process-group disposition, and a one-shot cell
// holding its final ExitStatus once observed. It is shared by cloning
// (in Go, simply by sharing the pointer); all methods take shared
// access and are safe to call concurrently from multiple goroutines.
//
// Dropping the last reference does not reap; reaping is tied to the
// owning Job's Close or to an explicit Wait.
type Process struct {
	proc    *os.Process
	pid     int
	ownPG   bool
	log     *zap.Logger
	now     func() time.Time
	status  atomic.Pointer[ExitStatus]
	waitMu  sync.Mutex // serializes the actual reap syscall
	waitErr error

	// platform-specific wait plumbing (backoff state on POSIX, a
	// background waiter + done channel on Windows).
	plat processWaiter
}

func newProcess(proc *os.Process, ownPG bool, log *zap.Logger, now func() time.Time) *Process {
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	p := &Process{proc: proc, pid: proc.Pid, ownPG: ownPG, log: log, now: now}
	p.plat = newProcessWaiter(p)
	return p
}

// Pid returns the process's pid.
func (p *Process) Pid() int { return p.pid }

// Clone returns a handle to the same process. In Go this is simply
// the same pointer: Process is already a shared, reference-counted-
// by-the-garbage-collector handle, so cloning never fails and never
// needs an explicit release.
func (p *Process) Clone() *Process { return p }

// Poll performs a non-blocking check for termination. It caches the
// final status on first observation; subsequent calls are pure reads.
func (p *Process) Poll() (ExitStatus, bool) {
	if s := p.status.Load(); s != nil {
		return *s, true
	}
	return p.plat.poll()
}

// Wait blocks until the process terminates, returning its final
// status. If the status was already observed (via Poll or a prior
// Wait/WaitTimeout), it is returned immediately without a second
// syscall.
func (p *Process) Wait() ExitStatus {
	if s := p.status.Load(); s != nil {
		return *s
	}
	return p.plat.wait()
}

// WaitTimeout blocks until the process terminates or the duration
// elapses, whichever comes first. It returns (status, true) on
// termination or (ExitStatus{}, false) on timeout; the process is
// still running in the latter case. The deadline is captured at entry
// and is never extended by intermediate non-blocking checks.
func (p *Process) WaitTimeout(d time.Duration) (ExitStatus, bool) {
	if s := p.status.Load(); s != nil {
		return *s, true
	}
	return p.plat.waitTimeout(p.now().Add(d))
}

// setStatus records the final status exactly once, satisfying the
// "observed exactly once" invariant even if multiple goroutines race
// to report it.
func (p *Process) setStatus(s ExitStatus) ExitStatus {
	if p.status.CompareAndSwap(nil, &s) {
		if code, ok := s.Code(); ok {
			p.log.Debug("process exited", zap.Int("pid", p.pid), zap.Int("code", code))
		} else if sig, ok := s.Signal(); ok {
			p.log.Debug("process signaled", zap.Int("pid", p.pid), zap.Int("signal", sig))
		}
	}
	return *p.status.Load()
}

// processWaiter is the platform-specific half of Process: how to
// observe termination without racing a second call into the reap
// syscall while it's in flight.
type processWaiter interface {
	poll() (ExitStatus, bool)
	wait() ExitStatus
	waitTimeout(deadline time.Time) (ExitStatus, bool)
}
