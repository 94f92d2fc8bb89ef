//go:build !linux

package client

import (
	"os"
	"os/exec"
)

// detachedCommand starts bin without session detachment on platforms where
// syscall.SysProcAttr.Setsid is unavailable; the spawned server remains a
// plain child process.
func detachedCommand(bin string, args []string, devNull *os.File) *exec.Cmd {
	cmd := exec.Command(bin, args...)
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	return cmd
}
