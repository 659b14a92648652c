package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mnaflow/crm-guard/internal/security"
)

// StartSpan starts a span with a type and string metadata. Metadata under
// sensitive key names is redacted before it becomes an attribute.
func (p *Provider) StartSpan(ctx context.Context, name, spanType string, metadata map[string]string) (context.Context, trace.Span) {
	spanCtx, span := p.tracer.Start(ctx, name)

	if spanType != "" {
		span.SetAttributes(attribute.String("span.type", spanType))
	}
	if p.config.Environment != "" {
		span.SetAttributes(attribute.String("environment", p.config.Environment))
	}

	clean, _ := security.Sanitize(metadata).(map[string]string)
	for key, value := range clean {
		span.SetAttributes(attribute.String(key, value))
	}

	return spanCtx, span
}

// SetCount records a named integer result
func (p *Provider) SetCount(span trace.Span, key string, n int) {
	span.SetAttributes(attribute.Int(key, n))
}

// SetDuration records how long the spanned work took
func (p *Provider) SetDuration(span trace.Span, duration time.Duration) {
	span.SetAttributes(
		attribute.Float64("duration.seconds", duration.Seconds()),
		attribute.Int64("duration.milliseconds", duration.Milliseconds()),
	)
}

// RecordError marks the span failed
func (p *Provider) RecordError(span trace.Span, err error, level string) {
	if err == nil {
		return
	}

	span.SetAttributes(
		attribute.String("error.type", "error"),
		attribute.String("error.message", err.Error()),
	)
	if level != "" {
		span.SetAttributes(attribute.String("error.level", level))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordSuccess marks the span ok
func (p *Provider) RecordSuccess(span trace.Span, message string) {
	span.SetAttributes(attribute.String("status", "success"))
	span.SetStatus(codes.Ok, message)
}
