// Command zagreus-server bridges a target device's serial/GPIO link to any
// number of TCP or Unix-domain clients, fanning out device bytes through
// internal/hub and accepting an in-band reset command from clients
// (spec.md §4.4).
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"zagreus/internal/metrics"
	"zagreus/internal/server"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("zagreus-server %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}

	if cfg.daemonize {
		if err := daemonize(cfg.pidFile); err != nil {
			fmt.Fprintf(os.Stderr, "daemonize: %v\n", err)
			os.Exit(1)
		}
		return
	}

	l := setupLogger(cfg.logFormat, cfg.logLevel)
	if err := writePIDFile(cfg.pidFile); err != nil {
		l.Warn("pid_file_write_failed", "error", err)
	}
	defer removePIDFile(cfg.pidFile)

	h := initHub(cfg, l)
	dev, err := initDevice(cfg, l)
	if err != nil {
		l.Error("device_init_error", "error", err)
		return
	}
	defer dev.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	opts := []server.Option{
		server.WithHub(h),
		server.WithDevice(dev),
		server.WithLogger(l),
		server.WithMaxClients(cfg.maxClients),
	}
	if cfg.unixSocket != "" {
		opts = append(opts, server.WithUnixSocket(cfg.unixSocket))
	} else {
		opts = append(opts, server.WithListenAddr(net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))))
	}
	srv := server.NewServer(opts...)

	go func() {
		var serveErr error
		if cfg.exitWhenIdle > 0 {
			serveErr = srv.ServeUntilIdle(ctx, cfg.exitWhenIdle)
		} else {
			serveErr = srv.Serve(ctx)
		}
		if serveErr != nil {
			l.Error("server_error", "error", serveErr)
		}
		cancel()
	}()

	go func() {
		if !cfg.mdnsEnable {
			return
		}
		select {
		case <-srv.Ready():
		case <-ctx.Done():
			return
		}
		addr := srv.Addr()
		var portNum int
		if _, p, err := net.SplitHostPort(addr); err == nil {
			if pn, perr := strconv.Atoi(p); perr == nil {
				portNum = pn
			}
		}
		if portNum == 0 {
			if i := strings.LastIndex(addr, ":"); i >= 0 {
				if pn, perr := strconv.Atoi(addr[i+1:]); perr == nil {
					portNum = pn
				}
			}
		}
		cleanupMDNS, err := startMDNS(ctx, cfg, portNum)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
			return
		}
		l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", portNum)
		go func() { <-ctx.Done(); cleanupMDNS() }()
	}()

	metrics.SetReadinessFunc(func() bool {
		select {
		case <-srv.Ready():
		default:
			return false
		}
		return ctx.Err() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		metricsHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = metricsHTTP.Shutdown(context.Background()) }()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigCh:
		l.Info("shutdown_signal", "signal", s.String())
	case <-ctx.Done():
		l.Info("shutdown_server_stopped")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Warn("shutdown_error", "error", err)
	}
	wg.Wait()
}
