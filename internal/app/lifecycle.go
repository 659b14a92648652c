package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mnaflow/crm-guard/internal/common/logging"
	"github.com/mnaflow/crm-guard/internal/observability"
	"github.com/mnaflow/crm-guard/internal/security"
)

const (
	minCheckInterval       = 10 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Trigger types
const (
	TriggerStartup  = "startup"
	TriggerPeriodic = "periodic"
	TriggerSignal   = "signal"
	TriggerShutdown = "shutdown"
)

// Trigger represents what woke the daemon loop
type Trigger struct {
	Type   string // "startup", "periodic", "signal", "shutdown"
	Signal os.Signal
}

// signalSetup matches setupSignalHandlers; tests substitute their own channels
type signalSetup func() (reload, shutdown chan os.Signal, cleanup func())

// Daemon runs configuration health checks, the rate limiter sweep and the
// operations server until it receives SIGINT or SIGTERM.
type Daemon struct {
	health          *HealthChecker
	server          *Server
	limiter         *security.RateLimiter
	tracing         *observability.Provider
	closers         []io.Closer
	logger          *logging.Logger
	checkInterval   time.Duration
	sweepInterval   time.Duration
	shutdownTimeout time.Duration
	onSignal        func(ctx context.Context) error
	signals         signalSetup
}

// DaemonOptions configures NewDaemon. Server, Limiter and Tracing may be nil.
type DaemonOptions struct {
	Health        *HealthChecker
	Server        *Server
	Limiter       *security.RateLimiter
	Tracing       *observability.Provider
	CheckInterval time.Duration
	SweepInterval time.Duration
	// Closers are closed in order after the server stops
	Closers []io.Closer
	// OnSignal runs before the check triggered by SIGUSR1, e.g. to re-read the policy file
	OnSignal func(ctx context.Context) error
}

// NewDaemon validates options and creates a daemon
func NewDaemon(opts DaemonOptions, logger *logging.Logger) (*Daemon, error) {
	if opts.Health == nil {
		return nil, fmt.Errorf("health checker is required")
	}
	if err := validateCheckInterval(opts.CheckInterval); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.New("daemon", logging.LevelInfo)
	}
	return &Daemon{
		health:          opts.Health,
		server:          opts.Server,
		limiter:         opts.Limiter,
		tracing:         opts.Tracing,
		closers:         opts.Closers,
		logger:          logger,
		checkInterval:   opts.CheckInterval,
		sweepInterval:   opts.SweepInterval,
		shutdownTimeout: defaultShutdownTimeout,
		onSignal:        opts.OnSignal,
		signals:         setupSignalHandlers,
	}, nil
}

// Run blocks until a shutdown signal arrives, ctx is cancelled, or the
// operations server fails. Everything is stopped within the shutdown timeout.
func (d *Daemon) Run(ctx context.Context) error {
	reloadChan, shutdownChan, cleanup := d.signals()
	defer cleanup()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if d.limiter != nil {
		d.limiter.Start(runCtx, d.sweepInterval)
	}

	d.health.Check(runCtx, TriggerStartup)

	serverDone := make(chan error, 1)
	if d.server != nil {
		go func() {
			serverDone <- d.server.Run(runCtx, d.shutdownTimeout)
		}()
	}

	var runErr error
	for {
		trigger, err := d.awaitTrigger(runCtx, reloadChan, shutdownChan, serverDone)
		if err != nil {
			runErr = err
			break
		}
		if trigger.Type == TriggerShutdown {
			d.logger.InfoKV("Shutdown triggered, gracefully stopping...", "signal", trigger.Signal)
			break
		}
		if trigger.Type == TriggerSignal && d.onSignal != nil {
			if err := d.onSignal(runCtx); err != nil {
				d.logger.ErrorKV("Signal handler failed", "error", err)
			}
		}
		d.health.Check(runCtx, trigger.Type)
	}

	cancel()
	d.shutdown(serverDone, runErr == nil && d.server != nil)
	return runErr
}

// awaitTrigger waits for the next check, a shutdown, or a server failure
func (d *Daemon) awaitTrigger(ctx context.Context, reloadChan, shutdownChan <-chan os.Signal, serverDone <-chan error) (Trigger, error) {
	timer := time.NewTimer(d.checkInterval)
	defer timer.Stop()

	select {
	case sig := <-reloadChan:
		d.logger.InfoKV("Configuration check signal received", "signal", sig)
		return Trigger{Type: TriggerSignal, Signal: sig}, nil

	case sig := <-shutdownChan:
		d.logger.InfoKV("Shutdown signal received", "signal", sig)
		return Trigger{Type: TriggerShutdown, Signal: sig}, nil

	case <-ctx.Done():
		return Trigger{Type: TriggerShutdown}, nil

	case err := <-serverDone:
		if err == nil {
			err = fmt.Errorf("operations server stopped unexpectedly")
		}
		return Trigger{}, err

	case <-timer.C:
		d.logger.Debug("Periodic configuration check triggered")
		return Trigger{Type: TriggerPeriodic}, nil
	}
}

// shutdown waits for the server then releases everything else
func (d *Daemon) shutdown(serverDone <-chan error, waitServer bool) {
	deadline := time.NewTimer(d.shutdownTimeout)
	defer deadline.Stop()

	if waitServer {
		select {
		case err := <-serverDone:
			if err != nil {
				d.logger.ErrorKV("Operations server stopped with error", "error", err)
			}
		case <-deadline.C:
			d.logger.WarnKV("Operations server shutdown timed out", "timeout", d.shutdownTimeout)
		}
	}

	if d.limiter != nil {
		_ = d.limiter.Close()
	}
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			d.logger.ErrorKV("Failed to close resource", "error", err)
		}
	}

	if d.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), d.shutdownTimeout)
		defer cancel()
		if err := d.tracing.Shutdown(ctx); err != nil {
			d.logger.ErrorKV("Failed to flush traces", "error", err)
		}
	}

	d.logger.Info("Shutdown completed")
}

// validateCheckInterval ensures the interval is not too short
func validateCheckInterval(interval time.Duration) error {
	if interval < minCheckInterval {
		return fmt.Errorf("health check interval %s is below minimum of %s", interval, minCheckInterval)
	}
	return nil
}
