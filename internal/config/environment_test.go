package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLayeredEnvironment(t *testing.T) {
	env := LayeredEnvironment{
		MapEnvironment{"A": "first"},
		MapEnvironment{"A": "second", "B": "second"},
	}

	if v, ok := env.Lookup("A"); !ok || v != "first" {
		t.Errorf("Expected first layer to win, got %q", v)
	}
	if v, ok := env.Lookup("B"); !ok || v != "second" {
		t.Errorf("Expected fallthrough to second layer, got %q", v)
	}
	if _, ok := env.Lookup("C"); ok {
		t.Error("Expected C to be undefined")
	}
}

func TestLoadEnvironmentFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "CRM_GUARD_TEST_FILE_ONLY=from-file\nCRM_GUARD_TEST_OVERRIDDEN=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Setenv("CRM_GUARD_TEST_OVERRIDDEN", "from-process")

	env, err := LoadEnvironment(quietLogger(), path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if v, _ := env.Lookup("CRM_GUARD_TEST_FILE_ONLY"); v != "from-file" {
		t.Errorf("Expected from-file, got %q", v)
	}
	if v, _ := env.Lookup("CRM_GUARD_TEST_OVERRIDDEN"); v != "from-process" {
		t.Errorf("Expected process environment to win, got %q", v)
	}
}

func TestLoadEnvironmentMissingFile(t *testing.T) {
	env, err := LoadEnvironment(quietLogger(), filepath.Join(t.TempDir(), "absent.env"), "")
	if err != nil {
		t.Fatalf("Expected missing file to be skipped, got %v", err)
	}
	if env == nil {
		t.Fatal("Expected environment, got nil")
	}
}

func TestLoadEnvironmentDirectory(t *testing.T) {
	if _, err := LoadEnvironment(quietLogger(), t.TempDir()); err == nil {
		t.Error("Expected error when path is a directory")
	}
}
