//go:build windows

package subprocess

import "syscall"

// sysProcAttrFor puts the child in a new process group on request, the
// closest Windows equivalent of POSIX setpgid: it lets a later signal
// (GenerateConsoleCtrlEvent in principle; unsupported here, see
// SendSignalGroup) target the group rather than a single process.
func sysProcAttrFor(setProcessGroup bool) *syscall.SysProcAttr {
	if !setProcessGroup {
		return nil
	}
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
