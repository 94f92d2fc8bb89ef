//go:build !linux

package main

import "errors"

// daemonize is only supported on Linux; on other platforms it returns an
// error, and zagreus-server exits when started with --daemonize.
func daemonize(pidFile string) error {
	return errors.New("daemonize: unsupported on this platform")
}
