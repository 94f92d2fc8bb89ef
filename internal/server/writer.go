package server

import (
	"fmt"
	"log/slog"
	"net"

	"zagreus/internal/hub"
	"zagreus/internal/metrics"
	"zagreus/internal/wire"
)

// startWriter drains client.Out (hub broadcasts and backbuffer replay) onto
// conn, wire-encoding each chunk immediately before it hits the socket. This
// is the sole encode point: the hub stores and replays decoded device bytes,
// so a chunk is encoded exactly once regardless of whether it arrived as a
// live broadcast or as part of a new client's backbuffer snapshot. Closing
// conn on exit is what unblocks the paired reader goroutine, which owns the
// actual disconnect bookkeeping (internal/server/reader.go).
func (s *Server) startWriter(done <-chan struct{}, conn net.Conn, client *hub.Client, log *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = conn.Close() }()
		for {
			select {
			case chunk, ok := <-client.Out:
				if !ok {
					return
				}
				if _, err := conn.Write(wire.Encode(chunk)); err != nil {
					wrap := fmt.Errorf("%w: %v", ErrConnWrite, err)
					metrics.IncError(mapErrToMetric(wrap))
					log.Debug("conn_write_failed", "error", err)
					return
				}
			case <-client.Closed:
				return
			case <-done:
				return
			}
		}
	}()
}
