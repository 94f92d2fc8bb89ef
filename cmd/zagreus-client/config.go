package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type appConfig struct {
	host       string
	port       int
	unixSocket string

	resetPin   string
	serialPort string
	baud       int

	menuKey string

	logFormat string
	logLevel  string

	serverBinary string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	host := flag.String("host", "", "zagreus-server host (TCP mode); empty, with --unix-socket also empty, uses the default Unix socket")
	port := flag.Int("port", 9999, "zagreus-server port (TCP mode)")
	unixSocket := flag.String("unix-socket", "", "Connect to a Unix domain socket instead of TCP; empty tries the default socket and spawns a background server if needed")
	resetPin := flag.String("reset-pin", "", "GPIO line name, forwarded to an auto-spawned background server")
	serialPort := flag.String("serial-port", "", "Serial device path, forwarded to an auto-spawned background server")
	baud := flag.Int("baud", 115200, "Serial baud rate, forwarded to an auto-spawned background server")
	menuKey := flag.String("menu-key", "C-A", "Menu key chord, e.g. C-A for Ctrl-A")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "warn", "Log level: debug|info|warn|error")
	serverBinary := flag.String("server-binary", "", "Path to zagreus-server, overriding PATH lookup when auto-spawning")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.host = *host
	cfg.port = *port
	cfg.unixSocket = *unixSocket
	cfg.resetPin = *resetPin
	cfg.serialPort = *serialPort
	cfg.baud = *baud
	cfg.menuKey = *menuKey
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.serverBinary = *serverBinary

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Println("environment override error:", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Println(err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// applyEnvOverrides maps ZAGREUS_CLIENT_* environment variables to config
// fields unless a corresponding flag was explicitly set (flags win),
// mirroring cmd/zagreus-server's applyEnvOverrides.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["host"]; !ok {
		if v, ok := get("ZAGREUS_CLIENT_HOST"); ok && v != "" {
			c.host = v
		}
	}
	if _, ok := set["port"]; !ok {
		if v, ok := get("ZAGREUS_CLIENT_PORT"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.port = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid ZAGREUS_CLIENT_PORT: %w", err)
			}
		}
	}
	if _, ok := set["unix-socket"]; !ok {
		if v, ok := get("ZAGREUS_CLIENT_UNIX_SOCKET"); ok {
			c.unixSocket = v
		}
	}
	if _, ok := set["reset-pin"]; !ok {
		if v, ok := get("ZAGREUS_CLIENT_RESET_PIN"); ok {
			c.resetPin = v
		}
	}
	if _, ok := set["serial-port"]; !ok {
		if v, ok := get("ZAGREUS_CLIENT_SERIAL_PORT"); ok {
			c.serialPort = v
		}
	}
	if _, ok := set["baud"]; !ok {
		if v, ok := get("ZAGREUS_CLIENT_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.baud = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid ZAGREUS_CLIENT_BAUD: %v", v)
			}
		}
	}
	if _, ok := set["menu-key"]; !ok {
		if v, ok := get("ZAGREUS_CLIENT_MENU_KEY"); ok && v != "" {
			c.menuKey = v
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("ZAGREUS_CLIENT_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("ZAGREUS_CLIENT_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["server-binary"]; !ok {
		if v, ok := get("ZAGREUS_CLIENT_SERVER_BINARY"); ok {
			c.serverBinary = v
		}
	}
	return firstErr
}

func (c *appConfig) validate() error {
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid --log-format %q: want text|json", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level %q: want debug|info|warn|error", c.logLevel)
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid --port %d: want 1-65535", c.port)
	}
	if c.baud <= 0 {
		return fmt.Errorf("invalid --baud %d: want a positive value", c.baud)
	}
	if _, err := parseMenuKey(c.menuKey); err != nil {
		return fmt.Errorf("invalid --menu-key %q: %w", c.menuKey, err)
	}
	return nil
}
