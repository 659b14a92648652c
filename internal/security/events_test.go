package security

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingReporter struct {
	mu      sync.Mutex
	reports []SuspiciousActivity
}

func (r *recordingReporter) ReportSuspiciousActivity(_ context.Context, activity SuspiciousActivity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, activity)
	return nil
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

func newTestMonitor(opts MonitorOptions) (*EventMonitor, *recordingReporter, *FixedClock) {
	reporter := &recordingReporter{}
	clock := NewFixedClock(epoch)
	monitor := NewEventMonitor(opts, reporter, testLogger()).WithClock(clock)
	return monitor, reporter, clock
}

func TestAnomalyThreshold(t *testing.T) {
	tests := []struct {
		name     string
		events   int
		expected int
	}{
		{"four failures", 4, 0},
		{"five failures", 5, 0},
		{"six failures", 6, 1},
		{"seven failures", 7, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor, reporter, clock := newTestMonitor(MonitorOptions{})
			for i := 0; i < tt.events; i++ {
				monitor.RecordEvent(EventAuthFailure, map[string]any{"user_id": "user123"})
				clock.Advance(5 * time.Second)
			}
			if got := reporter.count(); got != tt.expected {
				t.Errorf("Expected %d reports, got %d", tt.expected, got)
			}
		})
	}
}

func TestAnomalyReportContents(t *testing.T) {
	monitor, reporter, _ := newTestMonitor(MonitorOptions{})
	for i := 0; i < 6; i++ {
		monitor.RecordEvent(EventAuthFailure, map[string]any{"user_id": "u", "password": "hunter2"})
	}

	if reporter.count() != 1 {
		t.Fatalf("Expected 1 report, got %d", reporter.count())
	}
	report := reporter.reports[0]
	if report.EventType != EventAuthFailure || report.Count != 6 || report.Threshold != 5 {
		t.Errorf("Unexpected report: %+v", report)
	}
	if report.Window != DefaultAnomalyWindow {
		t.Errorf("Expected window %s, got %s", DefaultAnomalyWindow, report.Window)
	}
	if report.Data["password"] != RedactionMarker {
		t.Errorf("Expected report data to be sanitized, got %v", report.Data["password"])
	}
}

func TestAnomalyWindowExpires(t *testing.T) {
	monitor, reporter, clock := newTestMonitor(MonitorOptions{})

	for i := 0; i < 5; i++ {
		monitor.RecordEvent(EventAuthFailure, nil)
	}
	clock.Advance(61 * time.Second)
	monitor.RecordEvent(EventAuthFailure, nil)

	if reporter.count() != 0 {
		t.Errorf("Expected old events to fall out of the window, got %d reports", reporter.count())
	}
	if got := monitor.CountRecent(EventAuthFailure); got != 1 {
		t.Errorf("Expected 1 recent event, got %d", got)
	}
}

func TestResourceAccessThreshold(t *testing.T) {
	monitor, reporter, _ := newTestMonitor(MonitorOptions{})

	for i := 0; i < 50; i++ {
		monitor.RecordEvent(EventResourceAccess, nil)
	}
	if reporter.count() != 0 {
		t.Fatalf("Expected no report at threshold, got %d", reporter.count())
	}
	monitor.RecordEvent(EventResourceAccess, nil)
	if reporter.count() != 1 {
		t.Errorf("Expected 1 report above threshold, got %d", reporter.count())
	}
}

func TestOtherEventTypesDoNotCount(t *testing.T) {
	monitor, reporter, _ := newTestMonitor(MonitorOptions{})

	for i := 0; i < 100; i++ {
		monitor.RecordEvent(EventRateLimited, nil)
	}
	for i := 0; i < 5; i++ {
		monitor.RecordEvent(EventAuthFailure, nil)
	}
	if reporter.count() != 0 {
		t.Errorf("Expected no reports, got %d", reporter.count())
	}
}

func TestEventLogIsBounded(t *testing.T) {
	monitor, _, clock := newTestMonitor(MonitorOptions{Capacity: 10})

	for i := 0; i < 25; i++ {
		monitor.RecordEvent("custom", map[string]any{"seq": i})
		clock.Advance(time.Millisecond)
	}

	if monitor.Len() != 10 {
		t.Fatalf("Expected 10 events, got %d", monitor.Len())
	}
	events := monitor.Events()
	if events[0].Data["seq"] != 15 || events[9].Data["seq"] != 24 {
		t.Errorf("Expected oldest events dropped first, got first=%v last=%v", events[0].Data["seq"], events[9].Data["seq"])
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Error("Expected events oldest first")
		}
	}
}

func TestRecordEventSanitizesWithoutMutating(t *testing.T) {
	monitor, _, _ := newTestMonitor(MonitorOptions{})
	data := map[string]any{"access_token": "abc", "deal_id": "d1"}

	monitor.RecordEvent(EventResourceAccess, data)

	if data["access_token"] != "abc" {
		t.Error("Expected caller's map to be untouched")
	}
	stored := monitor.Events()[0].Data
	if stored["access_token"] != RedactionMarker || stored["deal_id"] != "d1" {
		t.Errorf("Expected sanitized copy, got %v", stored)
	}
}

func TestCustomThresholds(t *testing.T) {
	monitor, reporter, _ := newTestMonitor(MonitorOptions{
		Window:     10 * time.Second,
		Thresholds: map[string]int{EventSuspiciousInput: 1},
	})

	monitor.RecordEvent(EventSuspiciousInput, nil)
	monitor.RecordEvent(EventSuspiciousInput, nil)
	for i := 0; i < 10; i++ {
		monitor.RecordEvent(EventAuthFailure, nil)
	}

	if reporter.count() != 1 {
		t.Errorf("Expected only the custom threshold to report, got %d", reporter.count())
	}
}
