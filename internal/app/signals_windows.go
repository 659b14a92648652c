//go:build windows

package app

import (
	"os"
	"os/signal"
	"syscall"
)

// setupSignalHandlers only wires shutdown; there is no SIGUSR1 on Windows so
// configuration checks run on the periodic timer alone
func setupSignalHandlers() (reload, shutdown chan os.Signal, cleanup func()) {
	reloadChan := make(chan os.Signal, 1)
	shutdownChan := make(chan os.Signal, 1)

	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	cleanup = func() {
		signal.Stop(shutdownChan)
	}

	return reloadChan, shutdownChan, cleanup
}
