package app

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mnaflow/crm-guard/internal/common/logging"
	"github.com/mnaflow/crm-guard/internal/monitoring"
	"github.com/mnaflow/crm-guard/internal/observability"
)

// ConfigValidator is satisfied by *config.SecretStore
type ConfigValidator interface {
	Validate() []error
}

// DegradedNotifier alerts operators about configuration health transitions.
// *alerting.SlackNotifier satisfies it.
type DegradedNotifier interface {
	NotifyDegraded(ctx context.Context, problems []string) error
	NotifyRecovered(ctx context.Context) error
}

// HealthStatus is the outcome of the latest configuration check
type HealthStatus struct {
	Healthy   bool      `json:"healthy"`
	Problems  []string  `json:"problems,omitempty"`
	Trigger   string    `json:"trigger,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthChecker re-validates configuration after startup. Failures are logged,
// counted and alerted on, but never stop the process.
type HealthChecker struct {
	store    ConfigValidator
	tracing  *observability.Provider
	notifier DegradedNotifier
	logger   *logging.Logger
	now      func() time.Time

	mu       sync.RWMutex
	last     HealthStatus
	notified []string
}

// NewHealthChecker creates a checker; tracing and notifier may be nil
func NewHealthChecker(store ConfigValidator, tracing *observability.Provider, notifier DegradedNotifier, logger *logging.Logger) *HealthChecker {
	if logger == nil {
		logger = logging.New("health", logging.LevelInfo)
	}
	if tracing == nil {
		tracing, _ = observability.New(context.Background(), observability.Config{}, logger)
	}
	return &HealthChecker{
		store:    store,
		tracing:  tracing,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		last:     HealthStatus{Healthy: true},
	}
}

// Check validates configuration once and returns the result
func (h *HealthChecker) Check(ctx context.Context, trigger string) HealthStatus {
	ctx, span := h.tracing.StartSpan(ctx, "config.health_check", "health", map[string]string{"trigger": trigger})
	defer span.End()

	start := h.now()
	errs := h.store.Validate()
	duration := h.now().Sub(start)

	problems := make([]string, 0, len(errs))
	for _, err := range errs {
		problems = append(problems, err.Error())
		h.logger.ErrorKV("Configuration check failed", "trigger", trigger, "error", err)
	}

	status := HealthStatus{
		Healthy:   len(problems) == 0,
		Problems:  problems,
		Trigger:   trigger,
		CheckedAt: start,
	}

	monitoring.RecordHealthCheck(trigger, len(problems), duration)
	h.tracing.SetCount(span, "failures", len(problems))
	h.tracing.SetDuration(span, duration)
	if status.Healthy {
		h.tracing.RecordSuccess(span, "configuration valid")
		h.logger.DebugKV("Configuration check passed", "trigger", trigger, "duration", duration)
	} else {
		h.tracing.RecordError(span, errs[0], "degraded")
		h.logger.WarnKV("Configuration degraded", "trigger", trigger, "failures", len(problems))
	}

	h.mu.Lock()
	previous := h.notified
	h.last = status
	h.notified = problems
	h.mu.Unlock()

	h.notify(ctx, previous, problems)
	return status
}

// notify alerts only when the set of problems changes
func (h *HealthChecker) notify(ctx context.Context, previous, current []string) {
	if h.notifier == nil || slices.Equal(previous, current) {
		return
	}

	var err error
	if len(current) > 0 {
		err = h.notifier.NotifyDegraded(ctx, current)
	} else {
		err = h.notifier.NotifyRecovered(ctx)
	}
	if err != nil {
		h.logger.ErrorKV("Failed to send configuration alert", "error", err)
	}
}

// Status returns the latest result
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	status := h.last
	status.Problems = slices.Clone(h.last.Problems)
	return status
}
