// Package server implements the zagreus terminal-server component: it fans
// out device bytes to connected clients via internal/hub and forwards
// client bytes to the device, translating the wire codec and the in-band
// reset command at the edges (spec §4.4).
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"zagreus/internal/device"
	"zagreus/internal/hub"
	"zagreus/internal/logging"
	"zagreus/internal/metrics"
)

const (
	defaultBackbufferSize = 8192
	defaultIdleTimeout    = 0 // disabled
	deviceReadBufSize     = 4096
	rxBackoffMin          = 20 * time.Millisecond
	rxBackoffMax          = 2 * time.Second
)

// Server owns the listener, the device link, and the hub coordinating
// client lifecycle.
type Server struct {
	mu         sync.RWMutex
	addr       string
	unixSocket string

	Hub    *hub.Hub
	Device device.Link

	maxClients  int
	idleTimeout time.Duration

	readyOnce sync.Once
	readyCh   chan struct{}
	lastErrMu sync.Mutex
	lastErr   error
	errCh     chan error

	listener  net.Listener
	clientsMu sync.Mutex
	clients   map[*hub.Client]net.Conn

	wg         sync.WaitGroup
	logger     *slog.Logger
	nextConnID uint64

	totalAccepted     atomic.Uint64
	totalConnected    atomic.Uint64
	totalDisconnected atomic.Uint64
	totalResets       atomic.Uint64

	lastActiveMu sync.Mutex
	lastActive   time.Time
}

// Option configures a Server at construction time.
type Option func(*Server)

// NewServer builds a Server from options. If no Hub is supplied, one is
// created with the default backbuffer size.
func NewServer(opts ...Option) *Server {
	s := &Server{
		readyCh: make(chan struct{}),
		errCh:   make(chan error, 1),
		clients: make(map[*hub.Client]net.Conn),
		logger:  logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.addr == "" && s.unixSocket == "" {
		s.addr = ":0"
	}
	if s.Hub == nil {
		s.Hub = hub.New(defaultBackbufferSize)
	}
	return s
}

func WithListenAddr(a string) Option    { return func(s *Server) { s.addr = a } }
func WithUnixSocket(path string) Option { return func(s *Server) { s.unixSocket = path } }
func WithHub(h *hub.Hub) Option         { return func(s *Server) { s.Hub = h } }
func WithDevice(d device.Link) Option   { return func(s *Server) { s.Device = d } }
func WithMaxClients(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxClients = n
		}
	}
}
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) { s.idleTimeout = d }
}
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func (s *Server) Addr() string           { s.mu.RLock(); defer s.mu.RUnlock(); return s.addr }
func (s *Server) setAddr(a string)       { s.mu.Lock(); s.addr = a; s.mu.Unlock() }
func (s *Server) Ready() <-chan struct{} { return s.readyCh }
func (s *Server) Errors() <-chan error   { return s.errCh }

func (s *Server) setError(err error) {
	if err == nil {
		return
	}
	s.lastErrMu.Lock()
	s.lastErr = err
	s.lastErrMu.Unlock()
	select {
	case s.errCh <- err:
	default:
	}
}

func (s *Server) LastError() error {
	s.lastErrMu.Lock()
	defer s.lastErrMu.Unlock()
	return s.lastErr
}

func (s *Server) touch() {
	s.lastActiveMu.Lock()
	s.lastActive = time.Now()
	s.lastActiveMu.Unlock()
}

// Serve binds the configured listener, resets the device once, starts the
// device-read goroutine, and accepts clients until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		metrics.IncError(mapErrToMetric(wrap))
		s.setError(wrap)
		return wrap
	}
	s.listener = ln
	s.touch()
	s.readyOnce.Do(func() { close(s.readyCh) })
	s.logger.Info("listen", "addr", s.Addr())

	if s.Device != nil {
		if err := s.Device.Reset(ctx); err != nil {
			s.logger.Warn("initial_reset_failed", "error", err)
		} else {
			s.totalResets.Add(1)
		}
		s.wg.Add(1)
		go s.readDevice(ctx)
	}

	go func() { <-ctx.Done(); _ = ln.Close() }()
	for {
		if err := s.acceptOnce(ctx, ln); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// ServeUntilIdle wraps Serve, canceling its own internal context (and thus
// returning) once the hub has had zero connected clients for idleTimeout
// (spec §4.4). Device output also counts as activity and restarts the idle
// window. A non-positive idleTimeout disables the behavior and is
// equivalent to Serve.
func (s *Server) ServeUntilIdle(ctx context.Context, idleTimeout time.Duration) error {
	if idleTimeout <= 0 {
		return s.Serve(ctx)
	}
	inner, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(idleTimeout / 4)
		defer ticker.Stop()
		for {
			select {
			case <-inner.Done():
				return
			case <-ticker.C:
				if s.Hub.Count() > 0 {
					s.touch()
					continue
				}
				s.lastActiveMu.Lock()
				last := s.lastActive
				s.lastActiveMu.Unlock()
				if s.Hub.Count() == 0 && time.Since(last) > idleTimeout {
					s.logger.Info("idle_shutdown")
					cancel()
					return
				}
			}
		}
	}()
	err := s.Serve(inner)
	<-done
	return err
}

func (s *Server) listen() (net.Listener, error) {
	if s.unixSocket != "" {
		_ = os.Remove(s.unixSocket)
		return net.Listen("unix", s.unixSocket)
	}
	addr := s.Addr()
	if addr == "" {
		addr = ":0"
	}
	lc := net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, err
	}
	s.setAddr(ln.Addr().String())
	return ln, nil
}

func (s *Server) acceptOnce(ctx context.Context, ln net.Listener) error {
	conn, err := ln.Accept()
	if err != nil {
		select {
		case <-ctx.Done():
			return context.Canceled
		default:
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			time.Sleep(200 * time.Millisecond)
			return nil
		}
		wrap := fmt.Errorf("%w: %v", ErrAccept, err)
		metrics.IncError(mapErrToMetric(wrap))
		s.setError(wrap)
		return wrap
	}
	s.touch()
	s.totalAccepted.Add(1)
	metrics.IncConnectionsAccepted()
	connID := atomic.AddUint64(&s.nextConnID, 1)
	connLogger := s.logger.With("conn_id", connID, "remote", conn.RemoteAddr().String())

	if s.maxClients > 0 && s.Hub.Count() >= s.maxClients {
		metrics.IncConnectionsRejected()
		connLogger.Warn("client_reject_max", "max_clients", s.maxClients)
		_ = conn.Close()
		return nil
	}

	client := s.Hub.Accept()
	s.clientsMu.Lock()
	s.clients[client] = conn
	s.clientsMu.Unlock()
	s.totalConnected.Add(1)
	metrics.SetConnectionsActive(s.Hub.Count())
	connLogger.Info("client_connected")

	s.startWriter(ctx.Done(), conn, client, connLogger)
	s.startReader(ctx.Done(), conn, client, connLogger)
	return nil
}

// readDevice runs for the lifetime of the server, reading raw bytes off the
// device link and appending them to the hub, which keeps the backbuffer (and
// a replaying client's snapshot) in decoded form; wire.Encode is applied once,
// at the writer, so a ring-buffer trim can never split an escaped sentinel.
func (s *Server) readDevice(ctx context.Context) {
	defer s.wg.Done()
	buf := make([]byte, deviceReadBufSize)
	backoff := rxBackoffMin
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := s.Device.Read(buf)
		if n > 0 {
			s.touch()
			metrics.AddBytesFromDevice(n)
			raw := make([]byte, n)
			copy(raw, buf[:n])
			s.Hub.Append(raw)
			backoff = rxBackoffMin
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.IncError(metrics.ErrDeviceRead)
			s.logger.Warn("device_read_error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > rxBackoffMax {
				backoff = rxBackoffMax
			}
		} else if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}

// Shutdown closes all connected clients and the listener, waiting for
// reader/writer goroutines to exit or ctx's deadline, whichever is sooner.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}

	s.clientsMu.Lock()
	for cl, conn := range s.clients {
		_ = conn.Close()
		s.Hub.Remove(cl)
		delete(s.clients, cl)
	}
	s.clientsMu.Unlock()

	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: shutdown timeout: %v", ErrContext, ctx.Err())
	case <-done:
		s.logger.Info("shutdown_summary",
			"accepted", s.totalAccepted.Load(),
			"connected", s.totalConnected.Load(),
			"disconnected", s.totalDisconnected.Load(),
			"resets", s.totalResets.Load())
		return nil
	}
}
