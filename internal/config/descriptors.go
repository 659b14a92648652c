package config

import "time"

// SecretDescriptor declares one environment-derived value and its policy
type SecretDescriptor struct {
	Key       string
	Required  bool
	Default   string
	Validator Validator
}

// Database group
const (
	KeySupabaseURL            = "SUPABASE_URL"
	KeySupabaseAnonKey        = "SUPABASE_ANON_KEY"
	KeySupabaseServiceRoleKey = "SUPABASE_SERVICE_ROLE_KEY"
)

// Performance group
const (
	KeyCacheTTL        = "CACHE_TTL"
	KeyPageSize        = "PAGE_SIZE"
	KeyMaxUploadSizeMB = "MAX_UPLOAD_SIZE_MB"
)

// Feature flags
const (
	KeyFeatureReconversions    = "FEATURE_RECONVERSIONS"
	KeyFeatureValuations       = "FEATURE_VALUATIONS"
	KeyFeatureTeaserGeneration = "FEATURE_TEASER_GENERATION"
	KeyFeatureDebugPanel       = "FEATURE_DEBUG_PANEL"
)

// Timeouts
const (
	KeyAPITimeout                = "API_TIMEOUT"
	KeyUploadTimeout             = "UPLOAD_TIMEOUT"
	KeyDocumentGenerationTimeout = "DOCUMENT_GENERATION_TIMEOUT"
)

// Third-party integrations, each optional
const (
	KeyPappersAPIKey   = "PAPPERS_API_KEY"
	KeyOpenAIAPIKey    = "OPENAI_API_KEY"
	KeySlackWebhookURL = "SLACK_WEBHOOK_URL"
	KeyRedisURL        = "REDIS_URL"
	KeyOTLPEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// Service settings for the crm-guard daemon
const (
	KeyAppEnv                  = "APP_ENV"
	KeyLogLevel                = "LOG_LEVEL"
	KeyMetricsAddr             = "METRICS_ADDR"
	KeyHealthCheckInterval     = "HEALTH_CHECK_INTERVAL"
	KeyRateLimitSweepInterval  = "RATE_LIMIT_SWEEP_INTERVAL"
	KeyRateLimitIdleHorizon    = "RATE_LIMIT_IDLE_HORIZON"
	KeySecurityEventLogSize    = "SECURITY_EVENT_LOG_SIZE"
	KeyAnomalyWindow           = "ANOMALY_WINDOW"
	KeyAuthFailureThreshold    = "AUTH_FAILURE_THRESHOLD"
	KeyResourceAccessThreshold = "RESOURCE_ACCESS_THRESHOLD"
	KeyHeuristicsPolicyFile    = "HEURISTICS_POLICY_FILE"
	KeyGuardAPIToken           = "GUARD_API_TOKEN"
)

// Environments accepted by APP_ENV
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// DefaultDescriptors returns the descriptors compiled into the application.
// The database endpoint and public key are the only required values.
func DefaultDescriptors() []SecretDescriptor {
	return []SecretDescriptor{
		{Key: KeySupabaseURL, Required: true, Validator: HTTPSURL()},
		{Key: KeySupabaseAnonKey, Required: true, Validator: JWT()},
		{Key: KeySupabaseServiceRoleKey, Validator: JWT()},

		{Key: KeyCacheTTL, Default: "5m", Validator: Duration(0)},
		{Key: KeyPageSize, Default: "50", Validator: IntRange(1, 500)},
		{Key: KeyMaxUploadSizeMB, Default: "25", Validator: IntRange(1, 1024)},

		{Key: KeyFeatureReconversions, Default: "true", Validator: Bool()},
		{Key: KeyFeatureValuations, Default: "true", Validator: Bool()},
		{Key: KeyFeatureTeaserGeneration, Default: "false", Validator: Bool()},
		{Key: KeyFeatureDebugPanel, Default: "false", Validator: Bool()},

		{Key: KeyAPITimeout, Default: "30s", Validator: Duration(time.Second)},
		{Key: KeyUploadTimeout, Default: "2m", Validator: Duration(time.Second)},
		{Key: KeyDocumentGenerationTimeout, Default: "3m", Validator: Duration(time.Second)},

		{Key: KeyPappersAPIKey},
		{Key: KeyOpenAIAPIKey, Validator: Prefix("sk-")},
		{Key: KeySlackWebhookURL, Validator: HTTPSURL()},
		{Key: KeyRedisURL, Validator: URLWithSchemes("redis", "rediss")},
		{Key: KeyOTLPEndpoint, Validator: URLWithSchemes("http", "https")},

		{Key: KeyAppEnv, Default: EnvDevelopment, Validator: OneOf(EnvDevelopment, EnvStaging, EnvProduction)},
		{Key: KeyLogLevel, Default: "info", Validator: OneOf("debug", "info", "warn", "error")},
		{Key: KeyMetricsAddr, Default: ":9090", Validator: HostPort()},
		{Key: KeyHealthCheckInterval, Default: "5m", Validator: Duration(10 * time.Second)},
		{Key: KeyRateLimitSweepInterval, Default: "5m", Validator: Duration(time.Second)},
		{Key: KeyRateLimitIdleHorizon, Default: "1h", Validator: Duration(time.Minute)},
		{Key: KeySecurityEventLogSize, Default: "1000", Validator: IntRange(10, 100000)},
		{Key: KeyAnomalyWindow, Default: "60s", Validator: Duration(time.Second)},
		{Key: KeyAuthFailureThreshold, Default: "5", Validator: IntRange(1, 10000)},
		{Key: KeyResourceAccessThreshold, Default: "50", Validator: IntRange(1, 100000)},
		{Key: KeyHeuristicsPolicyFile},
		{Key: KeyGuardAPIToken, Validator: MinLength(16)},
	}
}
