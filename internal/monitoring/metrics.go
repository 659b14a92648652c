// Package monitoring exposes prometheus metrics for the configuration and
// security heuristics subsystems.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crmguard"

// Outcomes recorded for secret resolution
const (
	SecretOutcomeOK      = "ok"
	SecretOutcomeUnknown = "unknown"
	SecretOutcomeMissing = "missing"
	SecretOutcomeInvalid = "invalid"
)

const (
	MetricLabelOutcome = "outcome"
	MetricLabelType    = "type"
	MetricLabelTrigger = "trigger"
	MetricLabelResult  = "result"
)

var (
	secretResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "secret_resolutions_total",
			Help:      "Secret resolutions by outcome",
		},
		[]string{MetricLabelOutcome},
	)

	healthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_health_checks_total",
			Help:      "Configuration health checks by trigger and result",
		},
		[]string{MetricLabelTrigger, MetricLabelResult},
	)

	healthCheckFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "config_health_check_failures",
			Help:      "Number of failing configuration values in the last health check",
		},
	)

	healthCheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "config_health_check_duration_seconds",
			Help:      "Time spent validating configuration",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)

	rateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter decisions by result",
		},
		[]string{MetricLabelResult},
	)

	rateLimitTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limit_tracked_identifiers",
			Help:      "Identifiers currently held by the in-memory rate limiter",
		},
	)

	rateLimitEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_evictions_total",
			Help:      "Idle identifiers evicted by the sweep",
		},
	)

	securityEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "security_events_total",
			Help:      "Security events recorded by type",
		},
		[]string{MetricLabelType},
	)

	suspiciousActivity = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspicious_activity_reports_total",
			Help:      "Suspicious activity reports by triggering event type",
		},
		[]string{MetricLabelType},
	)

	contentFindings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_findings_total",
			Help:      "HTML and SQL heuristic findings by type",
		},
		[]string{MetricLabelType},
	)

	alertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operator_alerts_total",
			Help:      "Operator alerts by result",
		},
		[]string{MetricLabelResult},
	)
)

// RecordSecretResolution counts one Resolve call
func RecordSecretResolution(outcome string) {
	secretResolutions.WithLabelValues(outcome).Inc()
}

// RecordHealthCheck records a configuration health check run
func RecordHealthCheck(trigger string, failures int, duration time.Duration) {
	result := "healthy"
	if failures > 0 {
		result = "degraded"
	}
	healthChecks.WithLabelValues(trigger, result).Inc()
	healthCheckFailures.Set(float64(failures))
	healthCheckDuration.Observe(duration.Seconds())
}

// RecordRateLimitDecision counts an allow or deny
func RecordRateLimitDecision(allowed bool) {
	if allowed {
		rateLimitDecisions.WithLabelValues("allowed").Inc()
		return
	}
	rateLimitDecisions.WithLabelValues("denied").Inc()
}

// RecordRateLimitSweep records the identifiers left and evicted after a sweep
func RecordRateLimitSweep(tracked, evicted int) {
	rateLimitTracked.Set(float64(tracked))
	rateLimitEvictions.Add(float64(evicted))
}

// RecordSecurityEvent counts a recorded event
func RecordSecurityEvent(eventType string) {
	securityEvents.WithLabelValues(eventType).Inc()
}

// RecordSuspiciousActivity counts a report
func RecordSuspiciousActivity(eventType string) {
	suspiciousActivity.WithLabelValues(eventType).Inc()
}

// RecordContentFinding counts an HTML or SQL heuristic hit
func RecordContentFinding(kind string) {
	contentFindings.WithLabelValues(kind).Inc()
}

// RecordAlert counts an operator alert delivery attempt
func RecordAlert(delivered bool) {
	if delivered {
		alertsSent.WithLabelValues("delivered").Inc()
		return
	}
	alertsSent.WithLabelValues("failed").Inc()
}
