package errors

import (
	"errors"
	"strings"
	"testing"
)

var errSentinel = errors.New("sentinel")

func TestDomainErrorFormatting(t *testing.T) {
	plain := NewConfigError("env_file", "cannot read .env")
	if got := plain.Error(); got != "[config:env_file] cannot read .env" {
		t.Errorf("Unexpected error string: %s", got)
	}

	wrapped := WrapSecretsError(errSentinel, "missing", "SUPABASE_URL")
	if got := wrapped.Error(); got != "[secrets:missing] SUPABASE_URL: sentinel" {
		t.Errorf("Unexpected wrapped error string: %s", got)
	}
	if wrapped.Stack == "" {
		t.Error("Expected stack to be captured")
	}
}

func TestDomainErrorUnwrapAndAccessors(t *testing.T) {
	err := Wrap(WrapSecurityError(errSentinel, "policy", "bad policy").WithData("path", "/etc/policy.json"), "loading")

	if !Is(err, errSentinel) {
		t.Error("Expected errors.Is to see the sentinel through two wraps")
	}
	if !IsDomainError(err) {
		t.Error("Expected wrapped error to be detected as DomainError")
	}
	if domain, ok := GetDomain(err); !ok || domain != ErrorDomainSecurity {
		t.Errorf("Expected security domain, got %v (ok=%v)", domain, ok)
	}
	if code, ok := GetErrorCode(err); !ok || code != "policy" {
		t.Errorf("Expected policy code, got %v (ok=%v)", code, ok)
	}
	if path, ok := GetErrorData(err, "path"); !ok || path != "/etc/policy.json" {
		t.Errorf("Expected path data, got %v (ok=%v)", path, ok)
	}
}

func TestWrapNil(t *testing.T) {
	if WrapWithDomain(nil, ErrorDomainInternal, "x", "y") != nil {
		t.Error("Expected nil when wrapping nil")
	}
	if Wrap(nil, "context") != nil {
		t.Error("Expected nil when wrapping nil with Wrap")
	}
	if !strings.Contains(Wrap(errSentinel, "context").Error(), "context: sentinel") {
		t.Error("Expected Wrap to prefix the message")
	}
}
