//go:build unix

package subprocess

import (
	"errors"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// waitBackoffFloor/Ceiling bound the exponential-backoff sleep used
// by WaitTimeout between non-blocking WNOHANG reap attempts (no pidfd
// is used on any POSIX platform). Documented per spec's open question
// (a): bounds are fixed, not unbounded.
const (
	waitBackoffFloor   = time.Millisecond
	waitBackoffCeiling = 100 * time.Millisecond
)

var errNotOwnProcessGroup = errors.New("process was not started with its own process group")

type unixWaiter struct {
	p *Process
}

func newProcessWaiter(p *Process) processWaiter { return &unixWaiter{p: p} }

// reapOnce performs a single wait4 attempt, serialized by the
// Process's waitMu so concurrent pollers never race the kernel's
// one-shot reap. block=false passes WNOHANG and, if another goroutine
// holds waitMu (e.g. a blocking Wait), reports "not exited yet"
// instead of queueing behind it.
func (w *unixWaiter) reapOnce(block bool) (ExitStatus, bool, error) {
	if s := w.p.status.Load(); s != nil {
		return *s, true, nil
	}
	if block {
		w.p.waitMu.Lock()
	} else if !w.p.waitMu.TryLock() {
		return ExitStatus{}, false, nil
	}
	defer w.p.waitMu.Unlock()
	if s := w.p.status.Load(); s != nil {
		return *s, true, nil
	}

	var ws unix.WaitStatus
	flags := unix.WNOHANG
	if block {
		flags = 0
	}
	for {
		wpid, err := unix.Wait4(w.p.pid, &ws, flags, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			w.p.waitErr = err
			return ExitStatus{}, false, err
		}
		if wpid == 0 {
			// WNOHANG: child hasn't exited yet.
			return ExitStatus{}, false, nil
		}
		status := w.p.setStatus(newExitStatus(ws))
		return status, true, nil
	}
}

func (w *unixWaiter) poll() (ExitStatus, bool) {
	s, ok, _ := w.reapOnce(false)
	return s, ok
}

func (w *unixWaiter) wait() ExitStatus {
	s, _, _ := w.reapOnce(true)
	return s
}

func (w *unixWaiter) waitTimeout(deadline time.Time) (ExitStatus, bool) {
	backoff := waitBackoffFloor
	for {
		if s, ok, _ := w.reapOnce(false); ok {
			return s, true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ExitStatus{}, false
		}
		sleep := backoff
		if sleep > remaining {
			sleep = remaining
		}
		time.Sleep(sleep)
		backoff *= 2
		if backoff > waitBackoffCeiling {
			backoff = waitBackoffCeiling
		}
	}
}

// Terminate sends SIGTERM to the process.
func (p *Process) Terminate() error { return p.SendSignal(int(syscall.SIGTERM)) }

// Kill sends SIGKILL to the process.
func (p *Process) Kill() error { return p.SendSignal(int(syscall.SIGKILL)) }

// SendSignal sends an arbitrary signal to the process.
func (p *Process) SendSignal(sig int) error {
	s := syscall.Signal(sig)
	if err := unix.Kill(p.pid, s); err != nil {
		p.log.Debug("send signal failed", zap.Int("pid", p.pid), zap.String("signal", s.String()), zap.Error(err))
		return &Error{Kind: Other, Op: "send_signal", Err: err}
	}
	return nil
}

// SendSignalGroup sends sig to the process's entire process group. It
// errors with InvalidInput if the process was not started with its
// own process group (SetProcessGroup on the launch Config).
func (p *Process) SendSignalGroup(sig int) error {
	if !p.ownPG {
		return &Error{Kind: InvalidInput, Op: "send_signal_group",
			Err: errNotOwnProcessGroup}
	}
	if err := unix.Kill(-p.pid, syscall.Signal(sig)); err != nil {
		return &Error{Kind: Other, Op: "send_signal_group", Err: err}
	}
	return nil
}
