package server

import (
	"errors"

	"zagreus/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrListen    = errors.New("listen")
	ErrAccept    = errors.New("accept")
	ErrConnRead  = errors.New("conn_read")
	ErrConnWrite = errors.New("conn_write")
	ErrDeviceTx  = errors.New("device_tx")
	ErrContext   = errors.New("context_cancelled")
)

// mapErrToMetric maps wrapped sentinel errors to metrics labels.
func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrConnRead):
		return metrics.ErrConnRead
	case errors.Is(err, ErrConnWrite):
		return metrics.ErrConnWrite
	case errors.Is(err, ErrDeviceTx):
		return metrics.ErrDeviceWrite
	case errors.Is(err, ErrAccept), errors.Is(err, ErrListen):
		return metrics.ErrStartup
	case errors.Is(err, ErrContext):
		return "context"
	default:
		return "other"
	}
}
