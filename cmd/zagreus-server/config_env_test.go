package main

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := &appConfig{
		host: "localhost", port: 9999, baud: 115200,
		serialPort: "loopback", readTO: 50 * time.Millisecond,
		logFormat: "text", logLevel: "info", hubPolicy: "drop",
		backbufferSize: 8192, maxClients: 0,
	}

	os.Setenv("ZAGREUS_SERVER_BAUD", "230400")
	os.Setenv("ZAGREUS_SERVER_MDNS_ENABLE", "true")
	os.Setenv("ZAGREUS_SERVER_SERIAL_READ_TIMEOUT", "100ms")
	os.Setenv("ZAGREUS_SERVER_EXIT_WHEN_IDLE", "30s")
	t.Cleanup(func() {
		os.Unsetenv("ZAGREUS_SERVER_BAUD")
		os.Unsetenv("ZAGREUS_SERVER_MDNS_ENABLE")
		os.Unsetenv("ZAGREUS_SERVER_SERIAL_READ_TIMEOUT")
		os.Unsetenv("ZAGREUS_SERVER_EXIT_WHEN_IDLE")
	})

	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.baud != 230400 {
		t.Fatalf("expected baud override, got %d", base.baud)
	}
	if !base.mdnsEnable {
		t.Fatalf("expected mdnsEnable true")
	}
	if base.readTO != 100*time.Millisecond {
		t.Fatalf("expected readTO 100ms, got %v", base.readTO)
	}
	if base.exitWhenIdle != 30*time.Second {
		t.Fatalf("expected exitWhenIdle 30s, got %v", base.exitWhenIdle)
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := &appConfig{baud: 115200}
	os.Setenv("ZAGREUS_SERVER_BAUD", "230400")
	t.Cleanup(func() { os.Unsetenv("ZAGREUS_SERVER_BAUD") })

	if err := applyEnvOverrides(base, map[string]struct{}{"baud": {}}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.baud != 115200 {
		t.Fatalf("expected baud unchanged at 115200, got %d", base.baud)
	}
}

func TestApplyEnvOverrides_BadInt(t *testing.T) {
	base := &appConfig{backbufferSize: 8192}
	os.Setenv("ZAGREUS_SERVER_BACKBUFFER_SIZE", "notanumber")
	t.Cleanup(func() { os.Unsetenv("ZAGREUS_SERVER_BACKBUFFER_SIZE") })

	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad integer")
	}
}
