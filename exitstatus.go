package subprocess

import "strconv"

// ExitStatus is an opaque, platform-neutral snapshot of how a process
// ended. Exactly one of Code/Signal is present after a successful
// wait on Unix; Code is present on Windows.
//
// It is built directly from the platform wait syscall rather than
// wrapped around *os.ProcessState, because the POSIX wait path uses a
// non-blocking WNOHANG reap (see process_unix.go) and the standard
// library exposes no public constructor for *os.ProcessState from a
// raw wait status.
type ExitStatus struct {
	valid    bool
	exitCode int
	hasCode  bool
	signal   int
	hasSig   bool
}

// Success reports whether the process exited with status 0 and was
// not terminated by a signal.
func (s ExitStatus) Success() bool {
	return s.valid && s.hasCode && s.exitCode == 0
}

// Code returns the process's exit code, if it exited normally (as
// opposed to being terminated by a signal).
func (s ExitStatus) Code() (int, bool) {
	if !s.valid || !s.hasCode {
		return 0, false
	}
	return s.exitCode, true
}

// Signal returns the signal number that terminated the process, if
// any. Always empty on Windows.
func (s ExitStatus) Signal() (int, bool) {
	if !s.valid || !s.hasSig {
		return 0, false
	}
	return s.signal, true
}

// String renders a human-readable summary, e.g. for log fields.
func (s ExitStatus) String() string {
	switch {
	case !s.valid:
		return "<no status>"
	case s.hasSig:
		return "signal: " + strconv.Itoa(s.signal)
	case s.hasCode:
		return "exit status " + strconv.Itoa(s.exitCode)
	default:
		return "<unknown status>"
	}
}
