// Package main runs crm-guard: it validates the CRM's environment-derived
// configuration, keeps the rate limiter and security event monitor running,
// and serves metrics and health endpoints until it is asked to stop.
package main

import (
	"context"
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/mnaflow/crm-guard/internal/alerting"
	"github.com/mnaflow/crm-guard/internal/app"
	"github.com/mnaflow/crm-guard/internal/common/logging"
	"github.com/mnaflow/crm-guard/internal/config"
	"github.com/mnaflow/crm-guard/internal/observability"
	"github.com/mnaflow/crm-guard/internal/security"
)

var version = "dev"

var (
	envFile     = flag.String("env-file", ".env", "Path to a .env file; missing files are skipped")
	debug       = flag.Bool("debug", false, "Enable debug logging (overrides LOG_LEVEL)")
	policyFile  = flag.String("policy", "", "Path to a heuristics policy JSON file (overrides HEURISTICS_POLICY_FILE)")
	checkOnly   = flag.Bool("check", false, "Validate configuration and the policy file, then exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("crm-guard %s\n", version)
		return
	}

	bootLogger := logging.New("crm-guard", logging.LevelInfo).WithRedactor(security.SanitizeKV)

	env, err := config.LoadEnvironment(bootLogger, *envFile)
	if err != nil {
		bootLogger.Fatal("Failed to load environment: %v", err)
	}

	store, err := config.Load(env, bootLogger.WithName("secrets"))
	if err != nil {
		bootLogger.Fatal("Configuration is invalid: %v", err)
	}

	service, err := store.Service()
	if err != nil {
		bootLogger.Fatal("Failed to read service settings: %v", err)
	}
	integrations, err := store.Integrations()
	if err != nil {
		bootLogger.Fatal("Failed to read integration settings: %v", err)
	}

	logger := setupLogging(service)
	logger.InfoKV("Starting crm-guard", "version", version, "environment", service.Environment)

	path := service.PolicyFile
	if *policyFile != "" {
		path = *policyFile
	}
	policy, err := security.LoadPolicy(path)
	if err != nil {
		logger.Fatal("Failed to load heuristics policy: %v", err)
	}
	limits, err := policy.Limits()
	if err != nil {
		logger.Fatal("Invalid action limits: %v", err)
	}
	sqlInspector, err := policy.SQLInspector()
	if err != nil {
		logger.Fatal("Invalid SQL pattern: %v", err)
	}
	htmlInspector, err := policy.HTMLInspector()
	if err != nil {
		logger.Fatal("Invalid HTML rules: %v", err)
	}

	if *checkOnly {
		logger.InfoKV("Configuration and policy are valid", "descriptors", len(store.Keys()), "actions", len(limits))
		return
	}

	if err := run(logger, store, service, integrations, limits, sqlInspector, htmlInspector, path); err != nil {
		logger.Fatal("crm-guard stopped with error: %v", err)
	}
}

// setupLogging applies LOG_LEVEL, or debug when --debug is set
func setupLogging(service config.ServiceConfig) *logging.Logger {
	level := logging.ParseLevel(service.LogLevel)
	if *debug {
		level = logging.LevelDebug
	}
	return logging.New("crm-guard", level).WithRedactor(security.SanitizeKV)
}

// run wires the components and blocks until shutdown
func run(
	logger *logging.Logger,
	store *config.SecretStore,
	service config.ServiceConfig,
	integrations config.IntegrationsConfig,
	limits map[string]security.ActionLimit,
	sqlInspector *security.SQLInspector,
	htmlInspector *security.HTMLInspector,
	policyPath string,
) error {
	ctx := context.Background()
	var closers []io.Closer

	tracingCfg := observability.DefaultConfig()
	tracingCfg.ServiceVersion = version
	tracingCfg.Environment = service.Environment
	tracingCfg.OTLPEndpoint = integrations.OTLPEndpoint
	tracing, err := observability.New(ctx, tracingCfg, logger.WithName("observability"))
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	localLimiter := security.NewRateLimiter(service.IdleHorizon, logger.WithName("ratelimit"))
	var limiter security.Limiter = localLimiter
	if integrations.RedisURL != "" {
		redisLimiter, err := security.NewRedisRateLimiterFromURL(integrations.RedisURL, localLimiter, logger.WithName("ratelimit-redis"))
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisLimiter.Ping(pingCtx); err != nil {
			logger.WarnKV("Redis unreachable, using local rate limiting until it recovers", "error", err)
		}
		cancel()
		limiter = redisLimiter
		closers = append(closers, redisLimiter)
	}

	reporters := security.MultiReporter{security.NewLogReporter(logger.WithName("security-events"))}
	var notifier app.DegradedNotifier
	if integrations.SlackWebhookURL != "" {
		slackNotifier := alerting.NewSlackNotifier(integrations.SlackWebhookURL, service.Environment, logger.WithName("alerting"))
		async := security.NewAsyncReporter(slackNotifier, 0, 0, logger.WithName("alerting"))
		reporters = append(reporters, async)
		closers = append(closers, async)
		notifier = slackNotifier
		logger.Info("Slack alerts enabled")
	}

	opts := security.DefaultMonitorOptions()
	opts.Capacity = service.EventLogSize
	opts.Window = service.AnomalyWindow
	opts.Thresholds[security.EventAuthFailure] = service.AuthFailureThreshold
	opts.Thresholds[security.EventResourceAccess] = service.ResourceAccessThreshold
	monitor := security.NewEventMonitor(opts, reporters, logger.WithName("security-events"))

	guard := security.NewActionGuard(limiter, monitor, limits, sqlInspector, logger.WithName("action-guard")).
		WithHTMLInspector(htmlInspector)
	if service.APIToken == "" {
		logger.Warn("GUARD_API_TOKEN is not set; /v1 routes accept unauthenticated requests")
	}

	health := app.NewHealthChecker(store, tracing, notifier, logger.WithName("health"))
	server := app.NewServer(service.MetricsAddr, health, logger.WithName("server")).
		WithGuard(guard, service.APIToken)

	daemon, err := app.NewDaemon(app.DaemonOptions{
		Health:        health,
		Server:        server,
		Limiter:       localLimiter,
		Tracing:       tracing,
		CheckInterval: service.HealthCheckInterval,
		SweepInterval: service.SweepInterval,
		Closers:       closers,
		OnSignal: func(context.Context) error {
			return reloadPolicy(policyPath, guard, logger)
		},
	}, logger.WithName("daemon"))
	if err != nil {
		return err
	}

	return daemon.Run(ctx)
}

// reloadPolicy re-reads the policy file and swaps in its action limits
func reloadPolicy(path string, guard *security.ActionGuard, logger *logging.Logger) error {
	if path == "" {
		return nil
	}
	policy, err := security.LoadPolicy(path)
	if err != nil {
		return err
	}
	limits, err := policy.Limits()
	if err != nil {
		return err
	}
	guard.UpdateLimits(limits)
	logger.InfoKV("Heuristics policy reloaded", "file", path, "actions", len(limits))
	return nil
}
