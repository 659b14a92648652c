package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/mnaflow/crm-guard/internal/common/logging"
	"github.com/mnaflow/crm-guard/internal/security"
)

type testSignal string

func (s testSignal) String() string { return string(s) }
func (s testSignal) Signal()        {}

// fakeSignals hands the daemon channels the test controls
type fakeSignals struct {
	reload   chan os.Signal
	shutdown chan os.Signal
}

func newFakeSignals() *fakeSignals {
	return &fakeSignals{
		reload:   make(chan os.Signal, 1),
		shutdown: make(chan os.Signal, 1),
	}
}

func (f *fakeSignals) setup() (reload, shutdown chan os.Signal, cleanup func()) {
	return f.reload, f.shutdown, func() {}
}

type closeCounter struct {
	mu     sync.Mutex
	closed int
}

func (c *closeCounter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *closeCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func testLogger() *logging.Logger {
	return logging.NewWithWriter("test", logging.LevelError, &bytes.Buffer{})
}

func TestValidateCheckInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		wantErr  bool
	}{
		{name: "default 5m", interval: 5 * time.Minute, wantErr: false},
		{name: "minimum 10s", interval: 10 * time.Second, wantErr: false},
		{name: "below minimum", interval: 9 * time.Second, wantErr: true},
		{name: "zero", interval: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCheckInterval(tt.interval)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateCheckInterval() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewDaemonRequiresHealthChecker(t *testing.T) {
	if _, err := NewDaemon(DaemonOptions{CheckInterval: time.Minute}, testLogger()); err == nil {
		t.Error("Expected error without health checker")
	}

	checker := NewHealthChecker(&fakeValidator{}, nil, nil, testLogger())
	if _, err := NewDaemon(DaemonOptions{Health: checker, CheckInterval: time.Second}, testLogger()); err == nil {
		t.Error("Expected error for interval below minimum")
	}
}

func TestAwaitTrigger(t *testing.T) {
	checker := NewHealthChecker(&fakeValidator{}, nil, nil, testLogger())
	d, err := NewDaemon(DaemonOptions{Health: checker, CheckInterval: time.Minute}, testLogger())
	if err != nil {
		t.Fatalf("NewDaemon failed: %v", err)
	}

	t.Run("signal", func(t *testing.T) {
		reload := make(chan os.Signal, 1)
		reload <- testSignal("user1")
		trigger, err := d.awaitTrigger(context.Background(), reload, nil, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if trigger.Type != TriggerSignal {
			t.Errorf("Expected %s, got %s", TriggerSignal, trigger.Type)
		}
	})

	t.Run("shutdown", func(t *testing.T) {
		shutdown := make(chan os.Signal, 1)
		shutdown <- testSignal("term")
		trigger, _ := d.awaitTrigger(context.Background(), nil, shutdown, nil)
		if trigger.Type != TriggerShutdown {
			t.Errorf("Expected %s, got %s", TriggerShutdown, trigger.Type)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		trigger, _ := d.awaitTrigger(ctx, nil, nil, nil)
		if trigger.Type != TriggerShutdown {
			t.Errorf("Expected %s, got %s", TriggerShutdown, trigger.Type)
		}
	})

	t.Run("server failure", func(t *testing.T) {
		serverDone := make(chan error, 1)
		serverDone <- errors.New("bind: address already in use")
		if _, err := d.awaitTrigger(context.Background(), nil, nil, serverDone); err == nil {
			t.Error("Expected server error to be returned")
		}
	})

	t.Run("periodic", func(t *testing.T) {
		periodic := *d
		periodic.checkInterval = 10 * time.Millisecond
		trigger, _ := periodic.awaitTrigger(context.Background(), nil, nil, nil)
		if trigger.Type != TriggerPeriodic {
			t.Errorf("Expected %s, got %s", TriggerPeriodic, trigger.Type)
		}
	})
}

func TestDaemonRunChecksOnSignalAndShutsDown(t *testing.T) {
	validator := &fakeValidator{}
	checker := NewHealthChecker(validator, nil, nil, testLogger())
	limiter := security.NewRateLimiter(time.Hour, testLogger())
	closer := &closeCounter{}
	var reloads int

	d, err := NewDaemon(DaemonOptions{
		Health:        checker,
		Limiter:       limiter,
		CheckInterval: time.Hour,
		SweepInterval: time.Hour,
		Closers:       []io.Closer{closer},
		OnSignal: func(context.Context) error {
			reloads++
			return nil
		},
	}, testLogger())
	if err != nil {
		t.Fatalf("NewDaemon failed: %v", err)
	}
	signals := newFakeSignals()
	d.signals = signals.setup

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	waitFor(t, func() bool { return validator.callCount() == 1 })

	signals.reload <- testSignal("user1")
	waitFor(t, func() bool { return checker.Status().Trigger == TriggerSignal })

	if validator.callCount() != 2 {
		t.Errorf("Expected 2 checks, got %d", validator.callCount())
	}
	if reloads != 1 {
		t.Errorf("Expected signal handler to run once, got %d", reloads)
	}

	signals.shutdown <- testSignal("term")
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Daemon did not shut down")
	}

	if closer.count() != 1 {
		t.Errorf("Expected closer to be closed once, got %d", closer.count())
	}
}

func TestDaemonRunStopsOnContextCancel(t *testing.T) {
	checker := NewHealthChecker(&fakeValidator{}, nil, nil, testLogger())
	server := NewServer("127.0.0.1:0", checker, testLogger())

	d, err := NewDaemon(DaemonOptions{Health: checker, Server: server, CheckInterval: time.Hour}, testLogger())
	if err != nil {
		t.Fatalf("NewDaemon failed: %v", err)
	}
	d.signals = newFakeSignals().setup

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Daemon did not stop after context cancel")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}
