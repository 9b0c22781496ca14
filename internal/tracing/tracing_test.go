package tracing

import (
	"context"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestSetupDisabledReturnsNoopShutdown(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSanitizeEndpoint(t *testing.T) {
	tests := map[string]string{
		"http://collector:4317":   "collector:4317",
		"https://collector:4317/": "collector:4317",
		"collector:4317/":         "collector:4317",
		"  ":                      "",
	}
	for in, want := range tests {
		if got := sanitizeEndpoint(in); got != want {
			t.Errorf("sanitizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInjectHeaders(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	h := http.Header{}
	InjectHeaders(ctx, h)
	want := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	if got := h.Get("traceparent"); got != want {
		t.Fatalf("traceparent = %q, want %q", got, want)
	}

	InjectHeaders(ctx, nil)
}

func TestInjectHeadersWithoutSpan(t *testing.T) {
	h := http.Header{}
	InjectHeaders(context.Background(), h)
	if got := h.Get("traceparent"); got != "" {
		t.Fatalf("expected no traceparent, got %q", got)
	}
}

func TestConfigResolvesOnlyFromFields(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "from-env")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://env-collector:4317")

	var empty Config
	if got := empty.serviceName(); got != "tokengate" {
		t.Errorf("serviceName = %q, want tokengate", got)
	}
	if got := empty.endpoint(); got != "localhost:4317" {
		t.Errorf("endpoint = %q, want localhost:4317", got)
	}
	if got := empty.sampleRatio(); got != 1 {
		t.Errorf("sampleRatio = %v, want 1", got)
	}

	cfg := Config{ServiceName: " gate ", OTLPEndpoint: "https://collector:4317/", SampleRatio: 0.25}
	if got := cfg.serviceName(); got != "gate" {
		t.Errorf("serviceName = %q, want gate", got)
	}
	if got := cfg.endpoint(); got != "collector:4317" {
		t.Errorf("endpoint = %q, want collector:4317", got)
	}
	if got := cfg.sampleRatio(); got != 0.25 {
		t.Errorf("sampleRatio = %v, want 0.25", got)
	}
	if got := (Config{SampleRatio: 3}).sampleRatio(); got != 1 {
		t.Errorf("out of range ratio = %v, want 1", got)
	}
}
