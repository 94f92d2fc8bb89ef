package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"zagreus/internal/client"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("zagreus-client %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}

	l := setupLogger(cfg.logFormat, cfg.logLevel)
	menuKey, err := parseMenuKey(cfg.menuKey)
	if err != nil {
		l.Error("menu_key_error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := client.Connect(ctx, client.Config{
		Host:         cfg.host,
		Port:         cfg.port,
		UnixSocket:   cfg.unixSocket,
		ResetPin:     cfg.resetPin,
		SerialPort:   cfg.serialPort,
		Baud:         cfg.baud,
		MenuKey:      menuKey,
		ServerBinary: cfg.serverBinary,
		Logger:       l,
	})
	if err != nil {
		l.Error("connect_error", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			c.Stop()
		case <-ctx.Done():
		}
	}()

	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		l.Error("run_error", "error", err)
		_ = c.Close()
		os.Exit(1)
	}
}
