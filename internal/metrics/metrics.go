package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"zagreus/internal/logging"
)

// Prometheus counters and gauges for the terminal server.
var (
	BytesFromDevice = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bytes_from_device_total",
		Help: "Total bytes read from the device link.",
	})
	BytesToDevice = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bytes_to_device_total",
		Help: "Total bytes received from clients for the device link, counted as read off the socket before decoding.",
	})
	ConnectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "connections_accepted_total",
		Help: "Total client connections accepted.",
	})
	ConnectionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "connections_rejected_total",
		Help: "Total client connections rejected (e.g. max-clients).",
	})
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "connections_active",
		Help: "Current number of active client connections.",
	})
	ResetsPerformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resets_performed_total",
		Help: "Total device reset pulses performed.",
	})
	CommandsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commands_received_total",
		Help: "In-band commands received from clients, by command byte.",
	}, []string{"command"})
	ScriptStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "script_starts_total",
		Help: "Scripts started, by script name.",
	}, []string{"script"})
	ScriptCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "script_completions_total",
		Help: "Scripts completed successfully, by script name.",
	}, []string{"script"})
	ScriptFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "script_failures_total",
		Help: "Scripts that failed, by script name.",
	}, []string{"script"})
	BackbufferOccupancy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backbuffer_occupancy_bytes",
		Help: "Current number of bytes held in the server backbuffer.",
	})
	HubDroppedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_dropped_chunks_total",
		Help: "Total broadcast chunks dropped due to a slow client under the drop policy.",
	})
	HubKickedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_kicked_clients_total",
		Help: "Total clients disconnected due to backpressure under the kick policy.",
	})
	HubBroadcastFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_broadcast_fanout",
		Help: "Number of clients targeted in the most recent broadcast.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrDeviceRead  = "device_read"
	ErrDeviceWrite = "device_write"
	ErrDeviceReset = "device_reset"
	ErrConnRead    = "conn_read"
	ErrConnWrite   = "conn_write"
	ErrCodecFrame  = "codec_framing"
	ErrStartup     = "startup"
)

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters, cheap to read for status logging without going
// through the Prometheus registry.
var (
	localBytesFromDevice uint64
	localBytesToDevice   uint64
	localConnsActive     uint64
	localResets          uint64
	localErrors          uint64
	localHubDrop         uint64
	localHubKick         uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	BytesFromDevice uint64
	BytesToDevice   uint64
	ConnsActive     uint64
	Resets          uint64
	Errors          uint64
	HubDrops        uint64
	HubKicks        uint64
}

func Snap() Snapshot {
	return Snapshot{
		BytesFromDevice: atomic.LoadUint64(&localBytesFromDevice),
		BytesToDevice:   atomic.LoadUint64(&localBytesToDevice),
		ConnsActive:     atomic.LoadUint64(&localConnsActive),
		Resets:          atomic.LoadUint64(&localResets),
		Errors:          atomic.LoadUint64(&localErrors),
		HubDrops:        atomic.LoadUint64(&localHubDrop),
		HubKicks:        atomic.LoadUint64(&localHubKick),
	}
}

func AddBytesFromDevice(n int) {
	BytesFromDevice.Add(float64(n))
	atomic.AddUint64(&localBytesFromDevice, uint64(n))
}

func AddBytesToDevice(n int) {
	BytesToDevice.Add(float64(n))
	atomic.AddUint64(&localBytesToDevice, uint64(n))
}

func IncConnectionsAccepted() { ConnectionsAccepted.Inc() }

func IncConnectionsRejected() { ConnectionsRejected.Inc() }

func SetConnectionsActive(n int) {
	ConnectionsActive.Set(float64(n))
	atomic.StoreUint64(&localConnsActive, uint64(n))
}

func IncResetsPerformed() {
	ResetsPerformed.Inc()
	atomic.AddUint64(&localResets, 1)
}

func IncCommandReceived(cmd byte) {
	CommandsReceived.WithLabelValues(string(rune(cmd))).Inc()
}

func IncScriptStart(name string)      { ScriptStarts.WithLabelValues(name).Inc() }
func IncScriptCompletion(name string) { ScriptCompletions.WithLabelValues(name).Inc() }
func IncScriptFailure(name string)    { ScriptFailures.WithLabelValues(name).Inc() }

func SetBackbufferOccupancy(n int) { BackbufferOccupancy.Set(float64(n)) }

func IncHubDrop() {
	HubDroppedChunks.Inc()
	atomic.AddUint64(&localHubDrop, 1)
}

func IncHubKick() {
	HubKickedClients.Inc()
	atomic.AddUint64(&localHubKick, 1)
}

func SetBroadcastFanout(n int) { HubBroadcastFanout.Set(float64(n)) }

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first error of each kind does not pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{
		ErrDeviceRead, ErrDeviceWrite, ErrDeviceReset,
		ErrConnRead, ErrConnWrite, ErrCodecFrame, ErrStartup,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
