package console

import (
	"bytes"
	"os"
	"testing"
)

func newTestConsole(t *testing.T) (*Console, *os.File, *bytes.Buffer) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() { _ = r.Close(); _ = w.Close() })
	var out bytes.Buffer
	c, err := New(r, &out)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, w, &out
}

func TestGetKeyMapsDelToBackspace(t *testing.T) {
	c, w, _ := newTestConsole(t)
	if _, err := w.Write([]byte{0x7F}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := c.GetKey()
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if got != 0x08 {
		t.Fatalf("GetKey() = %#x, want 0x08", got)
	}
}

func TestGetKeyPassesThroughOrdinaryByte(t *testing.T) {
	c, w, _ := newTestConsole(t)
	if _, err := w.Write([]byte{'q'}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := c.GetKey()
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if got != 'q' {
		t.Fatalf("GetKey() = %q, want 'q'", got)
	}
}

func TestWriteGoesToOut(t *testing.T) {
	c, _, out := newTestConsole(t)
	if _, err := c.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if out.String() != "hello" {
		t.Fatalf("out = %q, want %q", out.String(), "hello")
	}
}

func TestClearCapabilityStripsDelayMarkers(t *testing.T) {
	got := delayMarker.ReplaceAllString("\x1b[H\x1b[2J$<5>", "")
	if got != "\x1b[H\x1b[2J" {
		t.Fatalf("delayMarker.ReplaceAllString = %q, want %q", got, "\x1b[H\x1b[2J")
	}
	stripped := delayMarker.ReplaceAllString("\x1b[3;J$<50>*rest", "")
	if stripped != "\x1b[3;Jrest" {
		t.Fatalf("delayMarker.ReplaceAllString = %q, want %q", stripped, "\x1b[3;Jrest")
	}
}

func TestClearCapabilityHasFallback(t *testing.T) {
	c, _, _ := newTestConsole(t)
	if c.ClearCapability() == "" {
		t.Fatalf("ClearCapability() empty, want terminfo value or ANSI fallback")
	}
}

// TestCookedBracketReturnsSetupCloser checks the shape of CookedBracket, not
// termios effects: the backing fd here is a pipe, not a tty, so Setup/Cleanup
// may themselves fail (ENOTTY) the way they would against any non-terminal
// fd — CookedBracket must still hand back Setup as the closer regardless.
func TestCookedBracketReturnsSetupCloser(t *testing.T) {
	c, _, _ := newTestConsole(t)
	restore, _ := c.CookedBracket()
	if restore == nil {
		t.Fatalf("CookedBracket returned nil closer")
	}
}
