package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	logglobal "go.opentelemetry.io/otel/log/global"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, endpoint, "test-service", false, nil)
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
			t.Fatal("providers should be non-nil")
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("shutdown should be no-op for empty endpoint, got error: %v", err)
		}
	}
}

func TestNewProviders_InvalidURL(t *testing.T) {
	ctx := context.Background()
	testCases := []struct {
		name     string
		endpoint string
	}{
		{"invalid characters", "://invalid"},
		{"malformed URL", "http://[invalid"},
		{"missing host", "http://"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewProviders(ctx, tc.endpoint, "test-service", false, nil); err == nil {
				t.Errorf("NewProviders(%q) should return error", tc.endpoint)
			}
		})
	}
}

func TestParseEndpoint(t *testing.T) {
	testCases := []struct {
		name         string
		endpoint     string
		override     bool
		wantTarget   string
		wantInsecure bool
	}{
		{"no scheme", "localhost:4317", false, "localhost:4317", true},
		{"http", "http://collector:4317", false, "collector:4317", true},
		{"https", "https://collector:4317", false, "collector:4317", false},
		{"https override", "https://collector:4317", true, "collector:4317", true},
		{"path dropped", "http://collector:4317/v1/traces", false, "collector:4317", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			target, insecure, err := parseEndpoint(tc.endpoint, tc.override)
			if err != nil {
				t.Fatalf("parseEndpoint: %v", err)
			}
			if target != tc.wantTarget || insecure != tc.wantInsecure {
				t.Errorf("got (%q, %v), want (%q, %v)", target, insecure, tc.wantTarget, tc.wantInsecure)
			}
		})
	}
}

func TestSetGlobal_WithProviders(t *testing.T) {
	ctx := context.Background()
	providers, err := NewProviders(ctx, "", "test-service", false, nil)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	providers.SetGlobal()

	if otel.GetTracerProvider() != providers.TracerProvider {
		t.Error("TracerProvider should be set globally")
	}
	if otel.GetMeterProvider() != providers.MeterProvider {
		t.Error("MeterProvider should be set globally")
	}
	if logglobal.GetLoggerProvider() != providers.LoggerProvider {
		t.Error("LoggerProvider should be set globally")
	}
}
