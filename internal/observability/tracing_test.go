package observability

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mnaflow/crm-guard/internal/common/logging"
)

func quietLogger() *logging.Logger {
	return logging.NewWithWriter("observability-test", logging.LevelError, io.Discard)
}

func recordingProvider() (*Provider, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewWithTracerProvider(tp, quietLogger()), recorder
}

func attributeMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	out := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value
	}
	return out
}

func TestNewDisabledWithoutEndpoint(t *testing.T) {
	p, err := New(context.Background(), Config{}, quietLogger())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if p.IsEnabled() {
		t.Error("Expected tracing disabled without endpoint")
	}

	_, span := p.StartSpan(context.Background(), "noop", "check", nil)
	p.RecordSuccess(span, "ok")
	span.End()

	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected no error from Shutdown, got %v", err)
	}
}

func TestStartSpanRedactsMetadata(t *testing.T) {
	p, recorder := recordingProvider()

	_, span := p.StartSpan(context.Background(), "config.health_check", "health", map[string]string{
		"trigger":   "periodic",
		"api_token": "abc",
	})
	p.SetCount(span, "failures", 2)
	p.SetDuration(span, 1500*time.Millisecond)
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(ended))
	}
	attrs := attributeMap(ended[0].Attributes())
	if attrs["span.type"].AsString() != "health" {
		t.Errorf("Expected span.type health, got %v", attrs["span.type"])
	}
	if attrs["trigger"].AsString() != "periodic" {
		t.Errorf("Expected trigger attribute, got %v", attrs["trigger"])
	}
	if attrs["api_token"].AsString() != "[REDACTED]" {
		t.Errorf("Expected redacted token, got %v", attrs["api_token"])
	}
	if attrs["failures"].AsInt64() != 2 {
		t.Errorf("Expected failures 2, got %v", attrs["failures"])
	}
	if attrs["duration.milliseconds"].AsInt64() != 1500 {
		t.Errorf("Expected 1500ms, got %v", attrs["duration.milliseconds"])
	}
}

func TestRecordErrorAndSuccess(t *testing.T) {
	p, recorder := recordingProvider()

	_, failed := p.StartSpan(context.Background(), "failing", "", nil)
	p.RecordError(failed, errors.New("boom"), "error")
	failed.End()

	_, ok := p.StartSpan(context.Background(), "passing", "", nil)
	p.RecordError(ok, nil, "error")
	p.RecordSuccess(ok, "done")
	ok.End()

	ended := recorder.Ended()
	if len(ended) != 2 {
		t.Fatalf("Expected 2 spans, got %d", len(ended))
	}
	if ended[0].Status().Code != codes.Error || ended[0].Status().Description != "boom" {
		t.Errorf("Expected error status, got %+v", ended[0].Status())
	}
	if len(ended[0].Events()) == 0 {
		t.Error("Expected an exception event on the failed span")
	}
	if ended[1].Status().Code != codes.Ok {
		t.Errorf("Expected ok status, got %+v", ended[1].Status())
	}
}
