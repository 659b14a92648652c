package config

import (
	"errors"
	"testing"
	"time"
)

func TestGroupDefaults(t *testing.T) {
	store, err := Load(minimalEnv(), quietLogger())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	db, err := store.Database()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if db.URL != "https://project.supabase.co" || db.AnonKey != testAnonKey || db.ServiceRoleKey != "" {
		t.Errorf("Unexpected database group: url=%s service_role_set=%v", db.URL, db.ServiceRoleKey != "")
	}

	perf, err := store.Performance()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if perf.CacheTTL != 5*time.Minute || perf.PageSize != 50 || perf.MaxUploadSizeMB != 25 {
		t.Errorf("Unexpected performance defaults: %+v", perf)
	}

	flags, err := store.Features()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	expectedFlags := FeatureFlags{Reconversions: true, Valuations: true}
	if flags != expectedFlags {
		t.Errorf("Expected %+v, got %+v", expectedFlags, flags)
	}

	timeouts, err := store.Timeouts()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if timeouts.API != 30*time.Second || timeouts.Upload != 2*time.Minute || timeouts.DocumentGeneration != 3*time.Minute {
		t.Errorf("Unexpected timeouts: %+v", timeouts)
	}

	integrations, err := store.Integrations()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if integrations != (IntegrationsConfig{}) {
		t.Error("Expected all integrations disabled by default")
	}

	svc, err := store.Service()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if svc.Environment != EnvDevelopment || svc.IsProduction() {
		t.Errorf("Expected development environment, got %s", svc.Environment)
	}
	if svc.EventLogSize != 1000 || svc.AuthFailureThreshold != 5 || svc.ResourceAccessThreshold != 50 {
		t.Errorf("Unexpected anomaly defaults: %+v", svc)
	}
	if svc.AnomalyWindow != time.Minute || svc.IdleHorizon != time.Hour {
		t.Errorf("Unexpected window defaults: %+v", svc)
	}
}

func TestGroupOverrides(t *testing.T) {
	env := minimalEnv()
	env[KeyPageSize] = "100"
	env[KeyFeatureDebugPanel] = "true"
	env[KeyAppEnv] = "PRODUCTION "
	env[KeySlackWebhookURL] = "https://hooks.slack.com/services/T/B/X"
	env[KeyGuardAPIToken] = "0123456789abcdef0123"

	store, err := Load(env, quietLogger())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	perf, _ := store.Performance()
	if perf.PageSize != 100 {
		t.Errorf("Expected page size 100, got %d", perf.PageSize)
	}
	flags, _ := store.Features()
	if !flags.DebugPanel {
		t.Error("Expected debug panel enabled")
	}
	svc, _ := store.Service()
	if !svc.IsProduction() {
		t.Errorf("Expected production, got %s", svc.Environment)
	}
	if svc.APIToken != "0123456789abcdef0123" {
		t.Error("Expected API token to be read from the environment")
	}
	integrations, _ := store.Integrations()
	if integrations.SlackWebhookURL == "" {
		t.Error("Expected Slack webhook to be set")
	}
}

func TestGroupErrorsAfterEnvChange(t *testing.T) {
	store, err := Load(minimalEnv(), quietLogger())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	env := minimalEnv()
	env[KeyPageSize] = "9999"
	store.env = env

	if _, err := store.Performance(); !errors.Is(err, ErrSecretValidation) {
		t.Errorf("Expected validation error from Performance, got %v", err)
	}
	if errs := store.Validate(); len(errs) != 1 {
		t.Errorf("Expected 1 validation error, got %d", len(errs))
	}
}

func TestLoadRejectsMalformedOptional(t *testing.T) {
	env := minimalEnv()
	env[KeyRedisURL] = "http://cache:6379"

	if _, err := Load(env, quietLogger()); !errors.Is(err, ErrSecretValidation) {
		t.Errorf("Expected validation error for non-redis URL, got %v", err)
	}
}
