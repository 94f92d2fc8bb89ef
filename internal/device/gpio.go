package device

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// resetPulseWidth is how long Reset holds the reset line asserted, unless its
// context ends sooner.
const resetPulseWidth = 120 * time.Millisecond

// GPIOResetLine pulses a periph.io GPIO pin to reset the target board:
// assert, hold, deassert (spec §4.2).
type GPIOResetLine struct {
	pin      gpio.PinIO
	assertOn gpio.Level
}

// OpenGPIOResetLine initializes the periph.io host drivers and looks up
// pinName, configuring it as an output idling at the level opposite
// assertOn.
func OpenGPIOResetLine(pinName string, assertOn gpio.Level) (*GPIOResetLine, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio host init: %w", err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", pinName)
	}
	idle := gpio.High
	if assertOn == gpio.High {
		idle = gpio.Low
	}
	if err := pin.Out(idle); err != nil {
		return nil, fmt.Errorf("gpio init %q: %w", pinName, err)
	}
	return &GPIOResetLine{pin: pin, assertOn: assertOn}, nil
}

// Reset asserts the reset line, holds it for resetPulseWidth or until ctx is
// canceled, then deasserts it.
func (g *GPIOResetLine) Reset(ctx context.Context) error {
	idle := gpio.High
	if g.assertOn == gpio.High {
		idle = gpio.Low
	}
	if err := g.pin.Out(g.assertOn); err != nil {
		return fmt.Errorf("gpio assert: %w", err)
	}
	select {
	case <-time.After(resetPulseWidth):
	case <-ctx.Done():
	}
	if err := g.pin.Out(idle); err != nil {
		return fmt.Errorf("gpio deassert: %w", err)
	}
	return nil
}
