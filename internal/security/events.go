package security

import (
	"context"
	"sync"
	"time"

	"github.com/mnaflow/crm-guard/internal/common/logging"
	"github.com/mnaflow/crm-guard/internal/monitoring"
)

// Event types recorded by the application
const (
	EventAuthFailure     = "auth_failure"
	EventResourceAccess  = "resource_access"
	EventRateLimited     = "rate_limited"
	EventSuspiciousInput = "suspicious_input"
)

// Defaults for MonitorOptions
const (
	DefaultEventLogSize  = 1000
	DefaultAnomalyWindow = 60 * time.Second
)

// SecurityEvent is one entry of the event log. Data is already sanitized.
type SecurityEvent struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// SuspiciousActivity is emitted when an event type exceeds its threshold
// within the anomaly window
type SuspiciousActivity struct {
	EventType string         `json:"event_type"`
	Count     int            `json:"count"`
	Threshold int            `json:"threshold"`
	Window    time.Duration  `json:"window"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// MonitorOptions configures an EventMonitor
type MonitorOptions struct {
	// Capacity bounds the event log; the oldest event is dropped first
	Capacity int
	// Window is the trailing interval counted after each append
	Window time.Duration
	// Thresholds maps event type to the count that may not be exceeded
	Thresholds map[string]int
	// ReportTimeout bounds each Reporter call
	ReportTimeout time.Duration
}

// DefaultThresholds returns the anomaly thresholds per event type
func DefaultThresholds() map[string]int {
	return map[string]int{
		EventAuthFailure:    5,
		EventResourceAccess: 50,
	}
}

// DefaultMonitorOptions returns a 1000 event log with a 60s window
func DefaultMonitorOptions() MonitorOptions {
	return MonitorOptions{
		Capacity:      DefaultEventLogSize,
		Window:        DefaultAnomalyWindow,
		Thresholds:    DefaultThresholds(),
		ReportTimeout: 5 * time.Second,
	}
}

// EventMonitor keeps a bounded ring buffer of security events and reports
// suspicious activity after each append that leaves an event type above its
// threshold. Counting is per event type across all actors.
type EventMonitor struct {
	mu     sync.Mutex
	buf    []SecurityEvent
	next   int
	size   int
	opts   MonitorOptions
	clock  Clock
	report Reporter
	logger *logging.Logger
}

// NewEventMonitor creates a monitor. Zero option fields take their defaults
// and a nil reporter logs through logger.
func NewEventMonitor(opts MonitorOptions, reporter Reporter, logger *logging.Logger) *EventMonitor {
	defaults := DefaultMonitorOptions()
	if opts.Capacity <= 0 {
		opts.Capacity = defaults.Capacity
	}
	if opts.Window <= 0 {
		opts.Window = defaults.Window
	}
	if opts.Thresholds == nil {
		opts.Thresholds = defaults.Thresholds
	}
	if opts.ReportTimeout <= 0 {
		opts.ReportTimeout = defaults.ReportTimeout
	}
	if logger == nil {
		logger = logging.New("security-events", logging.LevelInfo)
	}
	if reporter == nil {
		reporter = NewLogReporter(logger)
	}

	thresholds := make(map[string]int, len(opts.Thresholds))
	for k, v := range opts.Thresholds {
		thresholds[k] = v
	}
	opts.Thresholds = thresholds

	return &EventMonitor{
		buf:    make([]SecurityEvent, opts.Capacity),
		opts:   opts,
		clock:  SystemClock{},
		report: reporter,
		logger: logger,
	}
}

// WithClock sets a custom clock (for testing)
func (m *EventMonitor) WithClock(clock Clock) *EventMonitor {
	m.clock = clock
	return m
}

// RecordEvent sanitizes data, appends the event, and checks the anomaly
// window for its type. The report, if any, is sent after the lock is released.
func (m *EventMonitor) RecordEvent(eventType string, data map[string]any) {
	var clean map[string]any
	if data != nil {
		clean, _ = Sanitize(data).(map[string]any)
	}

	m.mu.Lock()
	now := m.clock.Now()
	m.buf[m.next] = SecurityEvent{Type: eventType, Timestamp: now, Data: clean}
	m.next = (m.next + 1) % len(m.buf)
	if m.size < len(m.buf) {
		m.size++
	}

	var activity *SuspiciousActivity
	if threshold, ok := m.opts.Thresholds[eventType]; ok {
		if count := m.countLocked(eventType, now); count > threshold {
			activity = &SuspiciousActivity{
				EventType: eventType,
				Count:     count,
				Threshold: threshold,
				Window:    m.opts.Window,
				Timestamp: now,
				Data:      clean,
			}
		}
	}
	m.mu.Unlock()

	monitoring.RecordSecurityEvent(eventType)
	if activity == nil {
		return
	}

	monitoring.RecordSuspiciousActivity(eventType)
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.ReportTimeout)
	defer cancel()
	if err := m.report.ReportSuspiciousActivity(ctx, *activity); err != nil {
		m.logger.ErrorKV("Failed to report suspicious activity", "event_type", eventType, "error", err)
	}
}

// countLocked walks back from the newest event until it leaves the window
func (m *EventMonitor) countLocked(eventType string, now time.Time) int {
	count := 0
	for i := 0; i < m.size; i++ {
		e := m.buf[(m.next-1-i+len(m.buf))%len(m.buf)]
		if now.Sub(e.Timestamp) > m.opts.Window {
			break
		}
		if e.Type == eventType {
			count++
		}
	}
	return count
}

// CountRecent returns how many events of eventType fall inside the window
func (m *EventMonitor) CountRecent(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked(eventType, m.clock.Now())
}

// Events returns a copy of the log, oldest first
func (m *EventMonitor) Events() []SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SecurityEvent, 0, m.size)
	start := (m.next - m.size + len(m.buf)) % len(m.buf)
	for i := 0; i < m.size; i++ {
		out = append(out, m.buf[(start+i)%len(m.buf)])
	}
	return out
}

// Len returns the number of events held
func (m *EventMonitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}
