package config

import (
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds the hosted database endpoint and its keys.
// Do not log this struct.
type DatabaseConfig struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
}

// PerformanceConfig holds client-side caching and paging limits
type PerformanceConfig struct {
	CacheTTL        time.Duration
	PageSize        int
	MaxUploadSizeMB int
}

// FeatureFlags toggles optional areas of the CRM
type FeatureFlags struct {
	Reconversions    bool
	Valuations       bool
	TeaserGeneration bool
	DebugPanel       bool
}

// TimeoutConfig contains timeout settings for outbound operations
type TimeoutConfig struct {
	API                time.Duration
	Upload             time.Duration
	DocumentGeneration time.Duration
}

// IntegrationsConfig holds optional third-party credentials; empty means disabled
type IntegrationsConfig struct {
	PappersAPIKey   string
	OpenAIAPIKey    string
	SlackWebhookURL string
	RedisURL        string
	OTLPEndpoint    string
}

// ServiceConfig holds the crm-guard daemon's own settings
type ServiceConfig struct {
	Environment             string
	LogLevel                string
	MetricsAddr             string
	HealthCheckInterval     time.Duration
	SweepInterval           time.Duration
	IdleHorizon             time.Duration
	EventLogSize            int
	AnomalyWindow           time.Duration
	AuthFailureThreshold    int
	ResourceAccessThreshold int
	PolicyFile              string
	// APIToken guards the /v1 routes; empty leaves them open. Do not log.
	APIToken string
}

// IsProduction reports whether APP_ENV is production
func (c ServiceConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Database returns the database group
func (s *SecretStore) Database() (DatabaseConfig, error) {
	g := groupReader{store: s}
	cfg := DatabaseConfig{
		URL:            g.str(KeySupabaseURL),
		AnonKey:        g.str(KeySupabaseAnonKey),
		ServiceRoleKey: g.str(KeySupabaseServiceRoleKey),
	}
	return cfg, g.err
}

// Performance returns the performance group
func (s *SecretStore) Performance() (PerformanceConfig, error) {
	g := groupReader{store: s}
	cfg := PerformanceConfig{
		CacheTTL:        g.duration(KeyCacheTTL),
		PageSize:        g.integer(KeyPageSize),
		MaxUploadSizeMB: g.integer(KeyMaxUploadSizeMB),
	}
	return cfg, g.err
}

// Features returns the feature flag group
func (s *SecretStore) Features() (FeatureFlags, error) {
	g := groupReader{store: s}
	cfg := FeatureFlags{
		Reconversions:    g.boolean(KeyFeatureReconversions),
		Valuations:       g.boolean(KeyFeatureValuations),
		TeaserGeneration: g.boolean(KeyFeatureTeaserGeneration),
		DebugPanel:       g.boolean(KeyFeatureDebugPanel),
	}
	return cfg, g.err
}

// Timeouts returns the timeout group
func (s *SecretStore) Timeouts() (TimeoutConfig, error) {
	g := groupReader{store: s}
	cfg := TimeoutConfig{
		API:                g.duration(KeyAPITimeout),
		Upload:             g.duration(KeyUploadTimeout),
		DocumentGeneration: g.duration(KeyDocumentGenerationTimeout),
	}
	return cfg, g.err
}

// Integrations returns the optional integrations group. A malformed optional
// credential is reported as an error; an absent one is just empty.
func (s *SecretStore) Integrations() (IntegrationsConfig, error) {
	g := groupReader{store: s}
	cfg := IntegrationsConfig{
		PappersAPIKey:   g.str(KeyPappersAPIKey),
		OpenAIAPIKey:    g.str(KeyOpenAIAPIKey),
		SlackWebhookURL: g.str(KeySlackWebhookURL),
		RedisURL:        g.str(KeyRedisURL),
		OTLPEndpoint:    g.str(KeyOTLPEndpoint),
	}
	return cfg, g.err
}

// Service returns the daemon settings group
func (s *SecretStore) Service() (ServiceConfig, error) {
	g := groupReader{store: s}
	cfg := ServiceConfig{
		Environment:             strings.ToLower(strings.TrimSpace(g.str(KeyAppEnv))),
		LogLevel:                g.str(KeyLogLevel),
		MetricsAddr:             g.str(KeyMetricsAddr),
		HealthCheckInterval:     g.duration(KeyHealthCheckInterval),
		SweepInterval:           g.duration(KeyRateLimitSweepInterval),
		IdleHorizon:             g.duration(KeyRateLimitIdleHorizon),
		EventLogSize:            g.integer(KeySecurityEventLogSize),
		AnomalyWindow:           g.duration(KeyAnomalyWindow),
		AuthFailureThreshold:    g.integer(KeyAuthFailureThreshold),
		ResourceAccessThreshold: g.integer(KeyResourceAccessThreshold),
		PolicyFile:              g.str(KeyHeuristicsPolicyFile),
		APIToken:                g.str(KeyGuardAPIToken),
	}
	return cfg, g.err
}

// checkGroups resolves every accessor group once
func (s *SecretStore) checkGroups() []error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	_, err := s.Database()
	collect(err)
	_, err = s.Performance()
	collect(err)
	_, err = s.Features()
	collect(err)
	_, err = s.Timeouts()
	collect(err)
	_, err = s.Integrations()
	collect(err)
	_, err = s.Service()
	collect(err)
	return errs
}

// groupReader keeps the first error so group accessors read top to bottom
type groupReader struct {
	store *SecretStore
	err   error
}

func (g *groupReader) str(key string) string {
	v, err := g.store.Resolve(key)
	if err != nil && g.err == nil {
		g.err = err
	}
	return v
}

func (g *groupReader) duration(key string) time.Duration {
	v := g.str(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil && g.err == nil {
		g.err = secretError(ErrSecretValidation, CodeValidationFailed, key, "not a duration")
	}
	return d
}

func (g *groupReader) integer(key string) int {
	v := g.str(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil && g.err == nil {
		g.err = secretError(ErrSecretValidation, CodeValidationFailed, key, "not an integer")
	}
	return n
}

func (g *groupReader) boolean(key string) bool {
	v := g.str(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil && g.err == nil {
		g.err = secretError(ErrSecretValidation, CodeValidationFailed, key, "not a boolean")
	}
	return b
}
