//go:build unix

package app

import (
	"os"
	"os/signal"
	"syscall"
)

// setupSignalHandlers routes SIGUSR1 to an immediate configuration check and
// SIGINT/SIGTERM to shutdown
func setupSignalHandlers() (reload, shutdown chan os.Signal, cleanup func()) {
	reloadChan := make(chan os.Signal, 1)
	shutdownChan := make(chan os.Signal, 1)

	signal.Notify(reloadChan, syscall.SIGUSR1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	cleanup = func() {
		signal.Stop(reloadChan)
		signal.Stop(shutdownChan)
	}

	return reloadChan, shutdownChan, cleanup
}
