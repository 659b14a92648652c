package security

import (
	"context"
	"sync"
	"time"

	customErrors "github.com/mnaflow/crm-guard/internal/common/errors"
	"github.com/mnaflow/crm-guard/internal/common/logging"
)

// Reporter receives suspicious activity reports
type Reporter interface {
	ReportSuspiciousActivity(ctx context.Context, activity SuspiciousActivity) error
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(ctx context.Context, activity SuspiciousActivity) error

// ReportSuspiciousActivity implements Reporter
func (f ReporterFunc) ReportSuspiciousActivity(ctx context.Context, activity SuspiciousActivity) error {
	return f(ctx, activity)
}

// LogReporter writes reports as warnings
type LogReporter struct {
	logger *logging.Logger
}

// NewLogReporter creates a LogReporter
func NewLogReporter(logger *logging.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// ReportSuspiciousActivity implements Reporter
func (r *LogReporter) ReportSuspiciousActivity(_ context.Context, activity SuspiciousActivity) error {
	r.logger.WarnKV("Suspicious activity detected",
		"event_type", activity.EventType,
		"count", activity.Count,
		"threshold", activity.Threshold,
		"window", activity.Window,
		"data", activity.Data,
	)
	return nil
}

// MultiReporter sends every report to each reporter in turn
type MultiReporter []Reporter

// ReportSuspiciousActivity implements Reporter; errors are joined
func (m MultiReporter) ReportSuspiciousActivity(ctx context.Context, activity SuspiciousActivity) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.ReportSuspiciousActivity(ctx, activity); err != nil {
			errs = append(errs, err)
		}
	}
	return customErrors.Join(errs...)
}

// AsyncReporter queues reports for a slow reporter (a webhook, say) so
// RecordEvent never waits on the network. Reports are dropped when the queue
// is full.
type AsyncReporter struct {
	next    Reporter
	queue   chan SuspiciousActivity
	timeout time.Duration
	logger  *logging.Logger

	mu        sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewAsyncReporter starts a worker delivering to next
func NewAsyncReporter(next Reporter, queueSize int, timeout time.Duration, logger *logging.Logger) *AsyncReporter {
	if queueSize <= 0 {
		queueSize = 64
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.New("reporter", logging.LevelInfo)
	}

	a := &AsyncReporter{
		next:    next,
		queue:   make(chan SuspiciousActivity, queueSize),
		timeout: timeout,
		logger:  logger,
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *AsyncReporter) run() {
	defer a.wg.Done()
	for activity := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.ReportSuspiciousActivity(ctx, activity); err != nil {
			a.logger.ErrorKV("Async report failed", "event_type", activity.EventType, "error", err)
		}
		cancel()
	}
}

// ReportSuspiciousActivity implements Reporter. After Close it returns an
// error instead of queueing.
func (a *AsyncReporter) ReportSuspiciousActivity(_ context.Context, activity SuspiciousActivity) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return customErrors.NewInternalError("reporter_closed", "reporter is closed")
	}

	select {
	case a.queue <- activity:
		return nil
	default:
		a.logger.WarnKV("Report queue full, dropping report", "event_type", activity.EventType)
		return customErrors.NewInternalError("report_queue_full", "report queue is full")
	}
}

// Close stops accepting reports and waits for queued ones to be delivered
func (a *AsyncReporter) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()
		a.wg.Wait()
	})
	return nil
}
