package client

import (
	"context"
	"time"
)

const readBufSize = 4096

// Run drives the client's event loop until the connection closes, the
// context is canceled, or the user exits via the menu. It is the Go
// realization of Z80Client.run_once's select() loop (spec.md §4.5): two
// background goroutines turn the blocking server-socket and console reads
// into channels, and a single select dispatches whichever is ready first,
// falling through to a bare script Interact call every wake (and on script
// deadlines even with no wake from either side).
func (c *Client) Run(ctx context.Context) error {
	serverCh := make(chan []byte)
	serverErrCh := make(chan error, 1)
	go c.readServerLoop(serverCh, serverErrCh)

	keyCh := make(chan byte)
	keyErrCh := make(chan error, 1)
	go c.readConsoleLoop(keyCh, keyErrCh)

	for c.isRunning() {
		var timer *time.Timer
		var timerCh <-chan time.Time
		if r := c.activeRunner(); r != nil {
			if deadline, ok := r.Deadline(); ok {
				timer = time.NewTimer(time.Until(deadline))
				timerCh = timer.C
			}
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return ctx.Err()

		case data, ok := <-serverCh:
			stopTimer(timer)
			if !ok {
				return nil
			}
			c.handleServerData(data)

		case err := <-serverErrCh:
			stopTimer(timer)
			return err

		case key, ok := <-keyCh:
			stopTimer(timer)
			if !ok {
				return nil
			}
			c.handleKey(key)

		case <-keyErrCh:
			stopTimer(timer)
			// console closed or Cancel()-unblocked for shutdown; loop will
			// observe isRunning() == false if Stop() caused this.

		case <-timerCh:
			// deadline elapsed with no input; fall through to the bare
			// Interact call below.
		}

		c.interactScript(nil, time.Now())
	}
	return nil
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (c *Client) readServerLoop(out chan<- []byte, errCh chan<- error) {
	buf := make([]byte, readBufSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- chunk
		}
		if err != nil {
			close(out)
			errCh <- err
			return
		}
	}
}

func (c *Client) readConsoleLoop(out chan<- byte, errCh chan<- error) {
	for {
		b, err := c.console.GetKey()
		if err != nil {
			close(out)
			errCh <- err
			return
		}
		out <- b
	}
}

// handleServerData decodes one chunk read from the server: commands are
// currently reserved and ignored, data segments get form-feed translation
// and are written to the console, and if a script is active the same chunk
// is fed to it (spec.md §4.5).
func (c *Client) handleServerData(data []byte) {
	for _, seg := range c.dec.Feed(data) {
		if seg.IsCommand {
			continue
		}
		_, _ = c.console.Write(c.translateServerFormFeed(seg.Data))
		c.interactScript(seg.Data, time.Now())
	}
}

// handleKey implements the in_menu latch from the reference client: one key
// either opens the menu, is dispatched by the menu, or is sent verbatim.
func (c *Client) handleKey(key byte) {
	c.mu.Lock()
	inMenu := c.inMenu
	c.inMenu = false
	c.mu.Unlock()

	switch {
	case inMenu:
		c.handleMenuKey(key)
	case key == c.menuKey:
		c.mu.Lock()
		c.inMenu = true
		c.mu.Unlock()
	default:
		c.Send([]byte{key})
	}
}
