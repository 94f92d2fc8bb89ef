package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"zagreus/internal/hub"
	"zagreus/internal/metrics"
	"zagreus/internal/wire"
)

const readBufSize = 4096

// startReader reads client bytes off conn, decodes the wire framing, and
// either dispatches an in-band command (Reset) or writes literal bytes to
// the device, translating a lone '\n' to "\r\n" (spec §4.4).
func (s *Server) startReader(done <-chan struct{}, conn net.Conn, client *hub.Client, log *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.disconnect(client, conn, log)

		var dec wire.Decoder
		buf := make([]byte, readBufSize)
		for {
			select {
			case <-done:
				return
			default:
			}
			n, err := conn.Read(buf)
			if n > 0 {
				metrics.AddBytesToDevice(n)
				for _, seg := range dec.Feed(buf[:n]) {
					if seg.IsCommand {
						s.handleCommand(seg.Data[0], log)
						continue
					}
					s.writeToDevice(translateNewlines(seg.Data), log)
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
					wrap := fmt.Errorf("%w: %v", ErrConnRead, err)
					metrics.IncError(mapErrToMetric(wrap))
					log.Debug("conn_read_closed", "error", err)
				}
				return
			}
		}
	}()
}

func (s *Server) handleCommand(cmd byte, log *slog.Logger) {
	metrics.IncCommandReceived(cmd)
	switch cmd {
	case wire.ResetCommand:
		if s.Device == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.Device.Reset(ctx); err != nil {
			metrics.IncError(metrics.ErrDeviceReset)
			log.Warn("reset_failed", "error", err)
			return
		}
		s.totalResets.Add(1)
		metrics.IncResetsPerformed()
		log.Info("device_reset")
		s.Hub.Append([]byte("\n"))
	default:
		log.Debug("unknown_command", "cmd", cmd)
	}
}

func (s *Server) writeToDevice(data []byte, log *slog.Logger) {
	if s.Device == nil || len(data) == 0 {
		return
	}
	if _, err := s.Device.Write(data); err != nil {
		wrap := fmt.Errorf("%w: %v", ErrDeviceTx, err)
		metrics.IncError(mapErrToMetric(wrap))
		log.Warn("device_write_failed", "error", err)
	}
}

// translateNewlines rewrites a lone '\n' not preceded by '\r' to "\r\n", the
// line ending the target's monitor ROM expects from a human typing Enter.
func translateNewlines(data []byte) []byte {
	if !bytes.Contains(data, []byte{'\n'}) {
		return data
	}
	out := make([]byte, 0, len(data)+4)
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b == '\n' && (i == 0 || data[i-1] != '\r') {
			out = append(out, '\r', '\n')
			continue
		}
		out = append(out, b)
	}
	return out
}

func (s *Server) disconnect(client *hub.Client, conn net.Conn, log *slog.Logger) {
	_ = conn.Close()
	s.Hub.Remove(client)
	s.clientsMu.Lock()
	delete(s.clients, client)
	s.clientsMu.Unlock()
	s.totalDisconnected.Add(1)
	metrics.SetConnectionsActive(s.Hub.Count())
	log.Info("client_disconnected")
}
