package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"zagreus/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"bytes_from_device", snap.BytesFromDevice,
					"bytes_to_device", snap.BytesToDevice,
					"conns_active", snap.ConnsActive,
					"resets", snap.Resets,
					"hub_drops", snap.HubDrops,
					"hub_kicks", snap.HubKicks,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
