package client

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"zagreus/internal/console"
)

const (
	spawnRetries  = 5
	spawnInterval = 1 * time.Second
)

// Connect dials the server described by cfg. If neither Host nor
// UnixSocket is set, it tries the default Unix socket; on failure it spawns
// a background zagreus-server and retries the connect up to spawnRetries
// times at spawnInterval (spec.md §4.5).
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	conn, err := dial(ctx, cfg)
	if err != nil {
		return nil, err
	}

	con, err := console.New(os.Stdin, os.Stdout)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("client: console init: %w", err)
	}
	if err := con.Setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("client: console setup: %w", err)
	}

	return newClient(conn, con, cfg), nil
}

func dial(ctx context.Context, cfg Config) (net.Conn, error) {
	d := net.Dialer{}
	switch {
	case cfg.UnixSocket != "":
		return d.DialContext(ctx, "unix", cfg.UnixSocket)
	case cfg.Host != "":
		return d.DialContext(ctx, "tcp", net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)))
	default:
		return dialDefaultOrSpawn(ctx, d, cfg)
	}
}

// dialDefaultOrSpawn implements the "no explicit endpoint configured" path:
// try the well-known local socket, and if nothing is listening, spawn a
// background server bound to it and retry.
func dialDefaultOrSpawn(ctx context.Context, d net.Dialer, cfg Config) (net.Conn, error) {
	if conn, err := d.DialContext(ctx, "unix", defaultUnixSocket); err == nil {
		return conn, nil
	}

	if err := spawnBackgroundServer(cfg); err != nil {
		return nil, fmt.Errorf("client: could not start background server: %w", err)
	}

	var lastErr error
	for i := 0; i < spawnRetries; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(spawnInterval):
		}
		conn, err := d.DialContext(ctx, "unix", defaultUnixSocket)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("client: could not connect to spawned server: %w", lastErr)
}

// spawnBackgroundServer launches zagreus-server detached, bound to the
// default Unix socket, configured to exit once idle so it does not
// outlive every client that ever used it.
func spawnBackgroundServer(cfg Config) error {
	bin := cfg.ServerBinary
	if bin == "" {
		path, err := exec.LookPath("zagreus-server")
		if err != nil {
			return fmt.Errorf("zagreus-server not found in PATH: %w", err)
		}
		bin = path
	}

	args := []string{
		"--unix-socket", defaultUnixSocket,
		"--exit-when-idle", "60s",
	}
	if cfg.ResetPin != "" {
		args = append(args, "--reset-pin", cfg.ResetPin)
	}
	if cfg.SerialPort != "" {
		args = append(args, "--serial-port", cfg.SerialPort)
	}
	if cfg.Baud != 0 {
		args = append(args, "--baud", fmt.Sprintf("%d", cfg.Baud))
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer devNull.Close()
	cmd := detachedCommand(bin, args, devNull)
	return cmd.Start()
}
