//go:build linux

package device

import (
	"context"
	"time"

	"github.com/tarm/serial"
)

// SerialLink is the real hardware backend: a tarm/serial port plus a GPIO
// reset line.
type SerialLink struct {
	port  *serial.Port
	reset *GPIOResetLine
}

// OpenSerialLink opens the named serial device at baud, wiring resetPin (may
// be nil, in which case Reset is a no-op returning ErrUnsupported) as the
// reset line.
func OpenSerialLink(name string, baud int, readTimeout time.Duration, resetPin *GPIOResetLine) (*SerialLink, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return &SerialLink{port: port, reset: resetPin}, nil
}

func (s *SerialLink) Read(p []byte) (int, error)  { return s.port.Read(p) }
func (s *SerialLink) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s *SerialLink) Close() error                { return s.port.Close() }

func (s *SerialLink) Reset(ctx context.Context) error {
	if s.reset == nil {
		return ErrUnsupported
	}
	return s.reset.Reset(ctx)
}
