//go:build windows

package subprocess

// newExitStatus builds an ExitStatus from the exit code of the
// *os.ProcessState obtained through (*os.Process).Wait. Windows has no POSIX signal encoding, so
// Signal is always empty.
func newExitStatus(exitCode int) ExitStatus {
	return ExitStatus{valid: true, exitCode: exitCode, hasCode: true}
}
