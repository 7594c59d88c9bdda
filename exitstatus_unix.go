//go:build unix

package subprocess

import "golang.org/x/sys/unix"

// newExitStatus builds an ExitStatus from a reaped wait4 status.
func newExitStatus(ws unix.WaitStatus) ExitStatus {
	if ws.Signaled() {
		return ExitStatus{valid: true, signal: int(ws.Signal()), hasSig: true}
	}
	return ExitStatus{valid: true, exitCode: ws.ExitStatus(), hasCode: true}
}
