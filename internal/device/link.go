// Package device implements the abstraction over the serial port and reset
// GPIO of the target single-board computer (spec §4.2), plus the test
// doubles used by the server's own test suite.
package device

import (
	"context"
	"errors"
)

// Link is the server's view of the device: a byte stream plus an
// out-of-band reset. There is no Fileno/poll accessor — the Go realization
// of "duck-typed fileno() participant" (spec §9) is a dedicated reader
// goroutine per Link, not a pollable descriptor.
type Link interface {
	// Read behaves like io.Reader: short reads are allowed, and (0, nil) is
	// a valid "nothing available yet" result for implementations backed by
	// non-blocking or polled transports.
	Read(p []byte) (int, error)
	// Write is blocking and best-effort.
	Write(p []byte) (int, error)
	// Reset pulses the device's reset line.
	Reset(ctx context.Context) error
	Close() error
}

// ErrUnsupported is returned by backends unavailable on the current
// platform or build.
var ErrUnsupported = errors.New("device: unsupported on this platform")
