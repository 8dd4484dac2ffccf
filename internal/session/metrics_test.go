package session

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"session-gate/internal/telemetry"
)

func TestManager_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	metrics, err := telemetry.NewSessionMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, Config{Metrics: metrics})
	if err := metrics.ObserveActive(f.m.ActiveCount); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	sess, _ := f.m.Create(ctx, 1, "10.0.0.1", "A")
	_, _ = f.m.Load(ctx, sess.SessionID, "10.0.0.66", "A")
	_ = f.m.Destroy(ctx, sess.SessionID)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}
	want := map[string]int64{
		"session.created":         1,
		"session.hijack_attempts": 1,
		"session.ended":           1,
		"session.active":          0,
	}
	seen := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			w, ok := want[m.Name]
			if !ok {
				continue
			}
			seen[m.Name] = true
			var total int64
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
			}
			if total != w {
				t.Errorf("%s = %d, want %d", m.Name, total, w)
			}
		}
	}
	for name := range want {
		if !seen[name] {
			t.Errorf("metric %s not recorded", name)
		}
	}
}
