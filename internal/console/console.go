// Package console puts the controlling terminal into raw, per-byte delivery
// mode for the zagreus client (spec.md §4.6) and exposes the `clear`
// terminfo capability used to translate form-feed bytes from the server.
package console

import (
	"io"
	"os"
	"regexp"

	"github.com/xo/terminfo"
)

// delayMarker strips terminfo delay markers ($<N>[/*]?) from a capability
// string; no pack library performs this, and the format is a small fixed
// grammar, so a regexp is the idiomatic tool rather than a hand-rolled
// parser (see DESIGN.md).
var delayMarker = regexp.MustCompile(`\$<\d+>[/*]?`)

// Console owns the terminal file descriptor and its saved attributes. saved
// holds whatever platform-specific state Setup captured so Cleanup can
// restore it (a *unix.Termios on linux); it stays nil on platforms with no
// termios-based Setup/Cleanup implementation. Typed as any so this shared
// file never has to import golang.org/x/sys/unix, which does not build on
// every GOOS the !linux console variant must still compile on.
type Console struct {
	in  *os.File
	out io.Writer
	fd  int

	clear string
	saved any
}

// New opens the `clear` terminfo capability for the current $TERM and wraps
// in/out, without touching terminal modes yet — call Setup to enter raw mode.
func New(in *os.File, out io.Writer) (*Console, error) {
	c := &Console{in: in, out: out, fd: int(in.Fd())}
	ti, err := terminfo.LoadFromEnv()
	if err == nil {
		if raw, perr := ti.Printf(terminfo.ClearScreen); perr == nil {
			c.clear = delayMarker.ReplaceAllString(raw, "")
		}
	}
	if c.clear == "" {
		// ANSI fallback so form-feed translation always has something to
		// emit, even when the terminfo database lacks an entry for $TERM.
		c.clear = "\x1b[2J\x1b[H"
	}
	return c, nil
}

// ClearCapability returns the delay-marker-stripped `clear` capability
// string, or the ANSI fallback New installed if the terminal has none.
func (c *Console) ClearCapability() string { return c.clear }

// Write emits text to the terminal and flushes immediately (there is no
// buffering to flush with os.File/io.Writer, but this mirrors the teacher's
// write-then-flush shape from the ambient stack).
func (c *Console) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

// GetKey reads a single byte, mapping DEL (0x7F) to BS (0x08) so backspace
// behaves portably across terminal emulators (spec.md §4.6).
func (c *Console) GetKey() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(c.in, b[:]); err != nil {
		return 0, err
	}
	if b[0] == 0x7F {
		return 0x08, nil
	}
	return b[0], nil
}

// CookedBracket leaves raw mode for the duration of a menu prompt or error
// message and returns a closer that re-enters raw mode. Callers that do not
// check the returned error still get a non-nil closer so the deferred call
// is always safe.
func (c *Console) CookedBracket() (func() error, error) {
	err := c.Cleanup()
	return c.Setup, err
}
