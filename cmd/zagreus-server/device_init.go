package main

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"

	"zagreus/internal/device"
)

// initDevice opens the configured device backend: the loopback test double,
// or a real serial port optionally paired with a GPIO reset line.
func initDevice(cfg *appConfig, l *slog.Logger) (device.Link, error) {
	if cfg.serialPort == "" || cfg.serialPort == "loopback" {
		l.Info("device_loopback")
		return device.NewLoopback(nil), nil
	}

	var resetLine *device.GPIOResetLine
	if cfg.resetPin != "" {
		rl, err := device.OpenGPIOResetLine(cfg.resetPin, gpio.Low)
		if err != nil {
			return nil, fmt.Errorf("open reset pin %q: %w", cfg.resetPin, err)
		}
		resetLine = rl
		l.Info("reset_pin_ready", "pin", cfg.resetPin)
	}

	link, err := device.OpenSerialLink(cfg.serialPort, cfg.baud, cfg.readTO, resetLine)
	if err != nil {
		return nil, fmt.Errorf("open serial %q: %w", cfg.serialPort, err)
	}
	l.Info("device_serial", "port", cfg.serialPort, "baud", cfg.baud)
	return link, nil
}
