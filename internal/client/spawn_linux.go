//go:build linux

package client

import (
	"os"
	"os/exec"
	"syscall"
)

// detachedCommand starts bin in a new session so it outlives this client
// process regardless of how the client's own controlling terminal exits.
func detachedCommand(bin string, args []string, devNull *os.File) *exec.Cmd {
	cmd := exec.Command(bin, args...)
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return cmd
}
