package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if provider.IsEnabled() {
		t.Error("provider should be disabled")
	}
	if provider.Tracer("feed") == nil {
		t.Error("disabled provider should still hand out a tracer")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name: "disabled ignores everything",
			cfg:  Config{SamplingRate: 7},
		},
		{
			name:    "missing service name",
			cfg:     Config{Enabled: true, SamplingRate: 0.5},
			wantErr: ErrMissingServiceName,
		},
		{
			name:    "negative sampling rate",
			cfg:     Config{Enabled: true, ServiceName: "askaround-cli", SamplingRate: -0.1},
			wantErr: ErrInvalidSamplingRate,
		},
		{
			name:    "sampling rate above one",
			cfg:     Config{Enabled: true, ServiceName: "askaround-cli", SamplingRate: 1.5},
			wantErr: ErrInvalidSamplingRate,
		},
		{
			name:    "unknown exporter",
			cfg:     Config{Enabled: true, ServiceName: "askaround-cli", ExporterType: "zipkin"},
			wantErr: ErrUnsupportedExporter,
		},
		{
			name: "exporter picked from endpoint",
			cfg:  Config{Enabled: true, ServiceName: "askaround-cli", OTLPEndpoint: "collector:4318"},
		},
		{
			name: "custom exporter skips exporter type",
			cfg:  Config{Enabled: true, ServiceName: "askaround-cli", ExporterType: "zipkin", Exporter: tracetest.NewInMemoryExporter()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, SamplingRate: 1})
	if !errors.Is(err, ErrMissingServiceName) {
		t.Errorf("NewProvider() error = %v", err)
	}
}

func TestExporterForEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"localhost:4318", ExporterOTLPHTTP},
		{"localhost:4317", ExporterOTLPGRPC},
		{"collector.internal", ExporterOTLPGRPC},
		{"", ExporterOTLPGRPC},
	}
	for _, tt := range tests {
		if got := ExporterForEndpoint(tt.endpoint); got != tt.want {
			t.Errorf("ExporterForEndpoint(%q) = %s, want %s", tt.endpoint, got, tt.want)
		}
	}
}

func TestNewProvider_ExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	exporter := tracetest.NewInMemoryExporter()
	provider, err := NewProvider(Config{
		ServiceName:  "askaround-cli",
		Enabled:      true,
		Environment:  "test",
		SamplingRate: 1,
		Exporter:     exporter,
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if !provider.IsEnabled() {
		t.Fatal("provider should be enabled")
	}

	_, end := StartSpan(context.Background(), "feed.sync")
	end(nil)

	// Shutdown would also clear the in-memory exporter.
	if err := provider.tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush() error = %v", err)
	}
	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "feed.sync" {
		t.Fatalf("spans = %+v, want one feed.sync span", spans)
	}
	var service string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	if service != "askaround-cli" {
		t.Errorf("service.name = %q", service)
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewProvider_NeverSample(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	exporter := tracetest.NewInMemoryExporter()
	provider, err := NewProvider(Config{
		ServiceName:  "askaround-cli",
		Enabled:      true,
		SamplingRate: 0,
		Exporter:     exporter,
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	_, span := provider.Tracer("test").Start(context.Background(), "dropped")
	span.End()
	if err := provider.tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush() error = %v", err)
	}
	defer provider.Shutdown(context.Background())

	if n := len(exporter.GetSpans()); n != 0 {
		t.Errorf("exported %d spans with sampling disabled", n)
	}
}
