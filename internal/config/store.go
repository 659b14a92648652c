package config

import (
	"fmt"
	"strings"

	customErrors "github.com/mnaflow/crm-guard/internal/common/errors"
	"github.com/mnaflow/crm-guard/internal/common/logging"
	"github.com/mnaflow/crm-guard/internal/monitoring"
)

// Sentinel causes carried by every secret resolution error.
// Match them with errors.Is.
var (
	// ErrUnknownSecret means code asked for a key with no descriptor
	ErrUnknownSecret = customErrors.New("unknown secret")

	// ErrMissingRequiredSecret means a required key resolved to empty
	ErrMissingRequiredSecret = customErrors.New("missing required secret")

	// ErrSecretValidation means a resolved value failed its validator
	ErrSecretValidation = customErrors.New("secret failed validation")

	// ErrInvalidDescriptor means the descriptor table itself is malformed
	ErrInvalidDescriptor = customErrors.New("invalid secret descriptor")
)

// Error codes used on DomainError
const (
	CodeUnknownSecret     = "unknown_secret"
	CodeMissingRequired   = "missing_required_secret"
	CodeValidationFailed  = "secret_validation_failed"
	CodeInvalidDescriptor = "invalid_descriptor"
	CodeStartupValidation = "startup_validation_failed"
)

// SecretStore resolves named values from an Environment according to their
// descriptors. Values are resolved on every call and never cached, and are
// never written to the logger.
type SecretStore struct {
	env         Environment
	descriptors map[string]SecretDescriptor
	order       []string
	logger      *logging.Logger
}

// NewSecretStore builds a store over env and validates every descriptor.
// It returns an error, and no store, when any required value is missing or
// any present value fails its validator. Callers treat this as fatal.
func NewSecretStore(env Environment, descriptors []SecretDescriptor, logger *logging.Logger) (*SecretStore, error) {
	if env == nil {
		env = OSEnvironment{}
	}
	if logger == nil {
		logger = logging.New("secrets", logging.LevelInfo)
	}

	s := &SecretStore{
		env:         env,
		descriptors: make(map[string]SecretDescriptor, len(descriptors)),
		order:       make([]string, 0, len(descriptors)),
		logger:      logger,
	}

	for _, d := range descriptors {
		key := strings.TrimSpace(d.Key)
		if key == "" || key != d.Key {
			return nil, secretError(ErrInvalidDescriptor, CodeInvalidDescriptor, d.Key, "descriptor key must be a non-empty trimmed name")
		}
		if _, dup := s.descriptors[key]; dup {
			return nil, secretError(ErrInvalidDescriptor, CodeInvalidDescriptor, key, "duplicate descriptor")
		}
		s.descriptors[key] = d
		s.order = append(s.order, key)
	}

	if errs := s.Validate(); len(errs) > 0 {
		return nil, startupError(errs)
	}

	logger.InfoKV("Secret store initialized", "descriptors", len(s.order))
	return s, nil
}

// Load builds the application store from DefaultDescriptors and also checks
// that every accessor group parses.
func Load(env Environment, logger *logging.Logger) (*SecretStore, error) {
	s, err := NewSecretStore(env, DefaultDescriptors(), logger)
	if err != nil {
		return nil, err
	}
	if errs := s.checkGroups(); len(errs) > 0 {
		return nil, startupError(errs)
	}
	return s, nil
}

// Resolve returns the value for key: the environment value, else the
// descriptor default, else "". See the Err* sentinels for failure causes.
func (s *SecretStore) Resolve(key string) (string, error) {
	d, ok := s.descriptors[key]
	if !ok {
		s.observe(key, monitoring.SecretOutcomeUnknown)
		return "", secretError(ErrUnknownSecret, CodeUnknownSecret, key, "no descriptor registered")
	}

	value := s.lookup(d)

	if value == "" {
		if d.Required {
			s.observe(key, monitoring.SecretOutcomeMissing)
			return "", secretError(ErrMissingRequiredSecret, CodeMissingRequired, key, "required value is not set")
		}
		s.observe(key, monitoring.SecretOutcomeOK)
		return "", nil
	}

	if d.Validator != nil {
		if verr := d.Validator(value); verr != nil {
			s.observe(key, monitoring.SecretOutcomeInvalid)
			return "", secretError(fmt.Errorf("%w: %v", ErrSecretValidation, verr), CodeValidationFailed, key, "value failed validation")
		}
	}

	s.observe(key, monitoring.SecretOutcomeOK)
	return value, nil
}

// ResolveOrDefault behaves like Resolve but returns fallback when the key is
// unknown, missing, or resolves to "". Validation failures are still returned.
func (s *SecretStore) ResolveOrDefault(key, fallback string) (string, error) {
	value, err := s.Resolve(key)
	if err != nil {
		if customErrors.Is(err, ErrSecretValidation) {
			return "", err
		}
		return fallback, nil
	}
	if value == "" {
		return fallback, nil
	}
	return value, nil
}

// Validate resolves every required descriptor, and every optional one that
// has a value, and returns all failures. It never panics and has no side
// effects beyond logging key names and metrics.
func (s *SecretStore) Validate() []error {
	var errs []error
	for _, key := range s.order {
		d := s.descriptors[key]
		if !d.Required && s.lookup(d) == "" {
			continue
		}
		if _, err := s.Resolve(key); err != nil {
			s.logger.DebugKV("Secret check failed", "name", key)
			errs = append(errs, err)
		}
	}
	return errs
}

// IsConfigured reports whether Resolve(key) would succeed
func (s *SecretStore) IsConfigured(key string) bool {
	_, err := s.Resolve(key)
	return err == nil
}

// HasValue reports whether key resolves successfully to a non-empty value
func (s *SecretStore) HasValue(key string) bool {
	v, err := s.Resolve(key)
	return err == nil && v != ""
}

// Keys returns the registered keys in declaration order
func (s *SecretStore) Keys() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// lookup treats unset, blank, and unsubstituted "${VAR}" placeholders alike.
// Any other value is returned exactly as set, whitespace included.
func (s *SecretStore) lookup(d SecretDescriptor) string {
	if v, ok := s.env.Lookup(d.Key); ok {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" && !strings.HasPrefix(trimmed, "${") {
			return v
		}
	}
	return d.Default
}

func (s *SecretStore) observe(key, outcome string) {
	monitoring.RecordSecretResolution(outcome)
	if outcome == monitoring.SecretOutcomeOK {
		return
	}
	s.logger.DebugKV("Secret resolution failed", "name", key, "outcome", outcome)
}

func secretError(cause error, code, key, message string) *customErrors.DomainError {
	return customErrors.WrapSecretsError(cause, code, fmt.Sprintf("%s: %s", key, message)).WithData("key", key)
}

func startupError(errs []error) error {
	return customErrors.WrapWithDomain(customErrors.Join(errs...), customErrors.ErrorDomainConfig, CodeStartupValidation,
		fmt.Sprintf("%d configuration value(s) failed validation", len(errs)))
}
