//go:build unix

package subprocess

import "syscall"

// sysProcAttrFor builds the SysProcAttr that puts the child in its own
// process group when requested, so SendSignalGroup has a group to
// target later.
func sysProcAttrFor(setProcessGroup bool) *syscall.SysProcAttr {
	if !setProcessGroup {
		return nil
	}
	return &syscall.SysProcAttr{Setpgid: true}
}
