//go:build !linux

package console

// Setup, Cleanup and Cancel have no portable termios/ioctl equivalent
// outside Linux; they are no-ops so cmd/zagreus-client still runs (without
// raw-mode key-at-a-time input) on other platforms, mirroring
// internal/device's SerialLink !linux stub.
func (c *Console) Setup() error   { return nil }
func (c *Console) Cleanup() error { return nil }
func (c *Console) Cancel() error  { return nil }
