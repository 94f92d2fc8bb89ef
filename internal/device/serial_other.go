//go:build !linux

package device

import (
	"context"
	"time"
)

// SerialLink is unavailable outside Linux; OpenSerialLink always fails so
// cmd/zagreus-server can fall back to --serial-port=loopback on other
// platforms.
type SerialLink struct{}

func OpenSerialLink(name string, baud int, readTimeout time.Duration, resetPin *GPIOResetLine) (*SerialLink, error) {
	return nil, ErrUnsupported
}

func (s *SerialLink) Read(p []byte) (int, error)      { return 0, ErrUnsupported }
func (s *SerialLink) Write(p []byte) (int, error)     { return 0, ErrUnsupported }
func (s *SerialLink) Close() error                    { return nil }
func (s *SerialLink) Reset(ctx context.Context) error { return ErrUnsupported }
