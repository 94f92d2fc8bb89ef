// Package client implements the zagreus terminal client: it connects to a
// zagreus-server endpoint, puts the controlling terminal into raw mode, and
// relays bytes between the two, with a menu-key-triggered command mode for
// reset, clear-screen, scripted automation, and help (spec.md §4.5).
package client

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"zagreus/internal/console"
	"zagreus/internal/logging"
	"zagreus/internal/metrics"
	"zagreus/internal/script"
	"zagreus/internal/wire"
)

// Config configures a Client. Host/Port, UnixSocket, ResetPin, SerialPort
// and Baud mirror the zagreus-server flags of the same name; the latter
// three are only used when Connect has to spawn a background server.
type Config struct {
	Host       string
	Port       int
	UnixSocket string

	ResetPin   string
	SerialPort string
	Baud       int

	MenuKey      byte
	ServerBinary string

	Logger *slog.Logger
}

const defaultUnixSocket = "/tmp/zagreus.sock"

func (c Config) menuKey() byte {
	if c.MenuKey != 0 {
		return c.MenuKey
	}
	code, err := controlCode('a')
	if err != nil {
		return 0x01
	}
	return code
}

// Client owns the server connection, the terminal console, and the single
// optional active script.
type Client struct {
	conn    net.Conn
	console *console.Console
	menuKey byte
	logger  *slog.Logger

	mu      sync.Mutex
	inMenu     bool
	running    bool
	dec        wire.Decoder
	runner     *script.Runner
	scriptName string
	scriptFail bool
}

// newClient wraps an already-connected conn and a ready console.
func newClient(conn net.Conn, con *console.Console, cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.L()
	}
	return &Client{
		conn:    conn,
		console: con,
		menuKey: cfg.menuKey(),
		logger:  logger,
		running: true,
	}
}

// Send wire-encodes data and writes it to the server. Used for ordinary
// keystroke/menu-key forwarding, which is unframed data (see writeRaw for
// the script on_output path, which is already wire-framed).
func (c *Client) Send(data []byte) {
	if _, err := c.conn.Write(wire.Encode(data)); err != nil {
		c.logger.Debug("send_failed", "error", err)
	}
}

// SendCommand writes the two-byte in-band command frame for cmd.
func (c *Client) SendCommand(cmd byte) {
	if _, err := c.conn.Write(wire.Command(cmd)); err != nil {
		c.logger.Debug("send_command_failed", "error", err)
	}
}

// writeRaw writes data to the server connection unmodified. Unlike Send, it
// performs no wire encoding: a script's on_output already hands over bytes
// in their final wire form (a wire.Command frame, or pre-encoded data via
// wire.Encode — see internal/script/composites.go), so encoding it again
// here would double-escape the sentinel byte and corrupt command frames
// such as the reset command into literal data.
func (c *Client) writeRaw(data []byte) {
	if _, err := c.conn.Write(data); err != nil {
		c.logger.Debug("script_output_failed", "error", err)
	}
}

// startScript activates script as the client's single active automation,
// wiring its output straight to the socket and its failure to a
// cooked-mode diagnostic.
func (c *Client) startScript(name string, s script.Script) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scriptName = name
	c.scriptFail = false
	c.runner = script.NewRunner(s, c.writeRaw, func(err error) {
		restore, _ := c.console.CookedBracket()
		_, _ = c.console.Write([]byte(fmt.Sprintf("\n[%s failed: %v]\n", name, err)))
		_ = restore()
		c.mu.Lock()
		c.scriptFail = true
		c.mu.Unlock()
	})
}

// activeRunner returns the current script runner, or nil, retiring a
// finished runner and recording its outcome in the process.
func (c *Client) activeRunner() *script.Runner {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runner != nil && !c.runner.Running() {
		c.retireScriptLocked()
	}
	return c.runner
}

// retireScriptLocked records the outcome metric for the just-finished
// script and clears the active-runner state. Caller must hold c.mu.
func (c *Client) retireScriptLocked() {
	if c.scriptName != "" {
		if c.scriptFail {
			metrics.IncScriptFailure(c.scriptName)
		} else {
			metrics.IncScriptCompletion(c.scriptName)
		}
	}
	c.runner = nil
	c.scriptName = ""
	c.scriptFail = false
}

// interactScript advances the active script exactly one Step, if any, and
// retires it once it has finished.
func (c *Client) interactScript(input []byte, now time.Time) {
	r := c.activeRunner()
	if r == nil {
		return
	}
	r.Interact(input, now)
	if !r.Running() {
		c.mu.Lock()
		c.retireScriptLocked()
		c.mu.Unlock()
	}
}

// Close shuts down the connection and restores the terminal, mirroring
// Console.Cancel()+Cleanup() from the original implementation's close().
func (c *Client) Close() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	_ = c.console.Cancel()
	connErr := c.conn.Close()
	cleanErr := c.console.Cleanup()
	if connErr != nil {
		return connErr
	}
	return cleanErr
}

// Stop requests the run loop exit on its next wake, equivalent to the
// original's running=false plus a cancel() to unblock a pending key read.
func (c *Client) Stop() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	_ = c.console.Cancel()
}

func (c *Client) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// dialAddr builds the "host:port" or unix path descriptor for logging.
func dialAddr(cfg Config) string {
	if cfg.UnixSocket != "" {
		return cfg.UnixSocket
	}
	return net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
}
