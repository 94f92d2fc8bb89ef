//go:build linux

package console

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Setup saves the current terminal attributes (once) and switches to raw,
// per-byte delivery mode: canonical mode, echo, and signal generation from
// control characters are disabled, and VMIN/VTIME are set for one-byte
// reads with no inter-byte timeout (spec.md §4.6).
func (c *Console) Setup() error {
	saved, ok := c.saved.(*unix.Termios)
	if !ok {
		t, err := unix.IoctlGetTermios(c.fd, unix.TCGETS)
		if err != nil {
			return err
		}
		saved = t
		c.saved = saved
	}
	raw := *saved
	raw.Lflag &^= unix.ICANON | unix.ECHO | unix.ISIG
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	return unix.IoctlSetTermios(c.fd, unix.TCSETS, &raw)
}

// Cleanup restores the saved terminal attributes and emits a trailing
// newline, matching the teacher-language original's exit hook.
func (c *Console) Cleanup() error {
	saved, ok := c.saved.(*unix.Termios)
	if !ok {
		return nil
	}
	if err := unix.IoctlSetTermios(c.fd, unix.TCSETSF, saved); err != nil {
		return err
	}
	_, err := c.Write([]byte("\n"))
	return err
}

// Cancel injects a zero byte into the terminal's input queue via TIOCSTI,
// unblocking a pending GetKey read from a signal handler (spec.md §4.6).
func (c *Console) Cancel() error {
	var zero byte
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(c.fd), uintptr(unix.TIOCSTI), uintptr(unsafe.Pointer(&zero)))
	if errno != 0 {
		return errno
	}
	return nil
}
