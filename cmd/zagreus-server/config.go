package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type appConfig struct {
	host         string
	port         int
	unixSocket   string
	exitWhenIdle time.Duration
	daemonize    bool
	pidFile      string

	resetPin   string
	serialPort string
	baud       int
	readTO     time.Duration

	debug       bool
	logFormat   string
	logLevel    string
	metricsAddr string
	maxClients  int

	mdnsEnable bool
	mdnsName   string

	backbufferSize  int
	hubPolicy       string
	logMetricsEvery time.Duration
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	host := flag.String("host", "localhost", "TCP listen host (ignored if --unix-socket is set)")
	port := flag.Int("port", 9999, "TCP listen port (ignored if --unix-socket is set)")
	unixSocket := flag.String("unix-socket", "", "Unix-domain socket path; when set, takes precedence over --host/--port")
	exitWhenIdle := flag.Duration("exit-when-idle", 0, "Exit after this long with zero connected clients and no device output (0 disables)")
	daemonize := flag.Bool("daemonize", false, "Detach into the background after startup")
	pidFile := flag.String("pid-file", "/tmp/zagreus.pid", "PID file path, written at startup before the device and listener are opened")
	resetPin := flag.String("reset-pin", "", "GPIO pin name driving the target's reset line (periph.io naming, e.g. GPIO17)")
	serialPort := flag.String("serial-port", "loopback", "Serial device path, or \"loopback\" for the in-memory test device")
	baud := flag.Int("baud", 115200, "Serial baud rate")
	readTO := flag.Duration("serial-read-timeout", 50*time.Millisecond, "Serial read timeout")
	debug := flag.Bool("debug", false, "Enable debug logging (equivalent to --log-level=debug)")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g. :9100); empty disables")
	maxClients := flag.Int("max-clients", 0, "Maximum simultaneous client connections (0 = unlimited)")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS advertisement of the terminal server")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default zagreus-<hostname>)")
	backbufferSize := flag.Int("backbuffer-size", 8192, "Device backbuffer size in bytes, replayed to newly-connected clients")
	hubPolicy := flag.String("hub-policy", "drop", "Backpressure policy for slow clients: drop|kick")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.host = *host
	cfg.port = *port
	cfg.unixSocket = *unixSocket
	cfg.exitWhenIdle = *exitWhenIdle
	cfg.daemonize = *daemonize
	cfg.pidFile = *pidFile
	cfg.resetPin = *resetPin
	cfg.serialPort = *serialPort
	cfg.baud = *baud
	cfg.readTO = *readTO
	cfg.debug = *debug
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.maxClients = *maxClients
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName
	cfg.backbufferSize = *backbufferSize
	cfg.hubPolicy = *hubPolicy
	cfg.logMetricsEvery = *logMetricsEvery

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if cfg.debug {
		cfg.logLevel = "debug"
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// applyEnvOverrides maps ZAGREUS_SERVER_* environment variables to config
// fields unless a corresponding flag was explicitly set (flags win). Boolean
// and numeric parsing is lax: empty values are ignored. Durations accept Go's
// time.ParseDuration format.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["host"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_HOST"); ok && v != "" {
			c.host = v
		}
	}
	if _, ok := set["port"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_PORT"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.port = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid ZAGREUS_SERVER_PORT: %w", err)
			}
		}
	}
	if _, ok := set["unix-socket"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_UNIX_SOCKET"); ok {
			c.unixSocket = v
		}
	}
	if _, ok := set["exit-when-idle"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_EXIT_WHEN_IDLE"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				c.exitWhenIdle = d
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid ZAGREUS_SERVER_EXIT_WHEN_IDLE: %w", err)
			}
		}
	}
	if _, ok := set["daemonize"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_DAEMONIZE"); ok && v != "" {
			c.daemonize = parseBoolLax(v, c.daemonize)
		}
	}
	if _, ok := set["pid-file"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_PID_FILE"); ok && v != "" {
			c.pidFile = v
		}
	}
	if _, ok := set["reset-pin"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_RESET_PIN"); ok {
			c.resetPin = v
		}
	}
	if _, ok := set["serial-port"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_SERIAL_PORT"); ok && v != "" {
			c.serialPort = v
		}
	}
	if _, ok := set["baud"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.baud = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid ZAGREUS_SERVER_BAUD: %v", v)
			}
		}
	}
	if _, ok := set["serial-read-timeout"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_SERIAL_READ_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.readTO = d
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid ZAGREUS_SERVER_SERIAL_READ_TIMEOUT: %v", v)
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_METRICS_ADDR"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["max-clients"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_MAX_CLIENTS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.maxClients = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid ZAGREUS_SERVER_MAX_CLIENTS: %v", v)
			}
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_MDNS_ENABLE"); ok && v != "" {
			c.mdnsEnable = parseBoolLax(v, c.mdnsEnable)
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	if _, ok := set["backbuffer-size"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_BACKBUFFER_SIZE"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.backbufferSize = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid ZAGREUS_SERVER_BACKBUFFER_SIZE: %v", v)
			}
		}
	}
	if _, ok := set["hub-policy"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_HUB_POLICY"); ok && v != "" {
			c.hubPolicy = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("ZAGREUS_SERVER_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid ZAGREUS_SERVER_LOG_METRICS_INTERVAL: %v", v)
			}
		}
	}
	return firstErr
}

// parseBoolLax maps a handful of common truthy/falsy spellings, leaving dflt
// unchanged for anything it doesn't recognize.
func parseBoolLax(v string, dflt bool) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return dflt
	}
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to open devices or listeners -- only checks values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.hubPolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("invalid hub-policy: %s", c.hubPolicy)
	}
	if c.backbufferSize <= 0 {
		return fmt.Errorf("backbuffer-size must be > 0 (got %d)", c.backbufferSize)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.readTO <= 0 {
		return fmt.Errorf("serial-read-timeout must be > 0")
	}
	if c.port <= 0 || c.port > 65535 {
		return fmt.Errorf("port out of range: %d", c.port)
	}
	if c.maxClients < 0 {
		return fmt.Errorf("max-clients must be >= 0")
	}
	if c.exitWhenIdle < 0 {
		return fmt.Errorf("exit-when-idle must be >= 0")
	}
	return nil
}
