package telemetry

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	s, ok := agg.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("aggregation %T is not an int64 sum", agg)
	}
	var total int64
	for _, dp := range s.DataPoints {
		total += dp.Value
	}
	return total
}

func TestSessionMetrics_Counters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewSessionMetrics(mp)
	if err != nil {
		t.Fatalf("NewSessionMetrics: %v", err)
	}
	ctx := context.Background()
	m.SessionCreated(ctx)
	m.SessionCreated(ctx)
	m.SessionEnded(ctx, "logout", 2*time.Hour)
	m.HijackDetected(ctx)
	m.LoginFailed(ctx)
	m.LoginFailed(ctx)
	m.LoginFailed(ctx)
	m.RateLimited(ctx)

	got := collect(t, reader)
	cases := map[string]int64{
		"session.created":         2,
		"session.ended":           1,
		"session.hijack_attempts": 1,
		"session.login_failed":    3,
		"session.rate_limited":    1,
	}
	for name, want := range cases {
		agg, ok := got[name]
		if !ok {
			t.Errorf("metric %s missing", name)
			continue
		}
		if v := sumOf(t, agg); v != want {
			t.Errorf("%s = %d, want %d", name, v, want)
		}
	}
	if _, ok := got["session.age"].(metricdata.Histogram[float64]); !ok {
		t.Error("session.age should be a float64 histogram")
	}
}

func TestSessionMetrics_ObserveActive(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m, err := NewSessionMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewSessionMetrics: %v", err)
	}
	if err := m.ObserveActive(func() int64 { return 7 }); err != nil {
		t.Fatalf("ObserveActive: %v", err)
	}
	g, ok := collect(t, reader)["session.active"].(metricdata.Gauge[int64])
	if !ok || len(g.DataPoints) != 1 || g.DataPoints[0].Value != 7 {
		t.Errorf("session.active = %+v, want 7", g)
	}
}

func TestSessionMetrics_NilIsNoop(t *testing.T) {
	var m *SessionMetrics
	ctx := context.Background()
	m.SessionCreated(ctx)
	m.SessionEnded(ctx, "expired", time.Minute)
	m.HijackDetected(ctx)
	m.LoginFailed(ctx)
	m.RateLimited(ctx)
	if err := m.ObserveActive(func() int64 { return 1 }); err != nil {
		t.Errorf("nil ObserveActive: %v", err)
	}
}
