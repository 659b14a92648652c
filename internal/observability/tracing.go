// Package observability sets up OpenTelemetry tracing for crm-guard.
// Without an OTLP endpoint the global no-op tracer is used and every helper
// in this package is still safe to call.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/mnaflow/crm-guard/internal/common/logging"
)

// TracerName is the instrumentation scope used for every span
const TracerName = "crm-guard"

// Config configures the tracer provider
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// OTLPEndpoint is an http(s) URL; empty disables export
	OTLPEndpoint string
	// SampleRate is 0.0 to 1.0
	SampleRate   float64
	BatchTimeout time.Duration
}

// DefaultConfig returns defaults with export disabled
func DefaultConfig() Config {
	return Config{
		ServiceName:    "crm-guard",
		ServiceVersion: "dev",
		Environment:    "development",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
	}
}

// Provider owns the tracer provider when export is enabled
type Provider struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	logger         *logging.Logger
	enabled        bool
}

// New creates a provider. An empty endpoint returns a disabled provider.
func New(ctx context.Context, config Config, logger *logging.Logger) (*Provider, error) {
	if logger == nil {
		logger = logging.New("observability", logging.LevelInfo)
	}
	defaults := DefaultConfig()
	if config.ServiceName == "" {
		config.ServiceName = defaults.ServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = defaults.ServiceVersion
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = defaults.BatchTimeout
	}

	p := &Provider{
		config: config,
		tracer: otel.Tracer(TracerName),
		logger: logger,
	}

	if config.OTLPEndpoint == "" {
		logger.Info("Tracing disabled: no OTLP endpoint configured")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			attribute.String("deployment.environment", config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(config.OTLPEndpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case config.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case config.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(config.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(config.BatchTimeout)),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.tracerProvider = tp
	p.tracer = tp.Tracer(TracerName, trace.WithInstrumentationVersion(config.ServiceVersion))
	p.enabled = true

	// the endpoint URL may carry credentials in its query, so only the fact is logged
	logger.InfoKV("Tracing initialized",
		"service", config.ServiceName,
		"environment", config.Environment,
		"sample_rate", config.SampleRate,
	)
	return p, nil
}

// NewWithTracerProvider wraps an existing tracer provider (for testing)
func NewWithTracerProvider(tp trace.TracerProvider, logger *logging.Logger) *Provider {
	if logger == nil {
		logger = logging.New("observability", logging.LevelInfo)
	}
	return &Provider{
		config:  DefaultConfig(),
		tracer:  tp.Tracer(TracerName),
		logger:  logger,
		enabled: true,
	}
}

// IsEnabled reports whether spans are exported
func (p *Provider) IsEnabled() bool {
	return p.enabled
}

// Tracer returns the provider's tracer
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown flushes pending spans
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider == nil {
		return nil
	}
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down tracer provider: %w", err)
	}
	return nil
}
