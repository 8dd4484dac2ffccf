// Package telemetry holds the session metrics instruments and async export helpers.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "session-gate/session"

// SessionMetrics records session lifecycle counters. A nil *SessionMetrics records nothing,
// so components built without telemetry can call it unconditionally.
type SessionMetrics struct {
	meter        metric.Meter
	created      metric.Int64Counter
	ended        metric.Int64Counter
	hijacks      metric.Int64Counter
	failedLogins metric.Int64Counter
	rateLimited  metric.Int64Counter
	age          metric.Float64Histogram
}

// NewSessionMetrics creates the instruments on mp.
func NewSessionMetrics(mp metric.MeterProvider) (*SessionMetrics, error) {
	meter := mp.Meter(meterName)
	m := &SessionMetrics{meter: meter}
	var err error
	if m.created, err = meter.Int64Counter("session.created", metric.WithDescription("Sessions minted")); err != nil {
		return nil, err
	}
	if m.ended, err = meter.Int64Counter("session.ended", metric.WithDescription("Sessions ended, by reason")); err != nil {
		return nil, err
	}
	if m.hijacks, err = meter.Int64Counter("session.hijack_attempts", metric.WithDescription("Binding violations detected")); err != nil {
		return nil, err
	}
	if m.failedLogins, err = meter.Int64Counter("session.login_failed", metric.WithDescription("Failed login and refresh attempts")); err != nil {
		return nil, err
	}
	if m.rateLimited, err = meter.Int64Counter("session.rate_limited", metric.WithDescription("Requests rejected by the IP limiter")); err != nil {
		return nil, err
	}
	if m.age, err = meter.Float64Histogram("session.age", metric.WithUnit("h"), metric.WithDescription("Session age at end")); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveActive registers a gauge reporting the number of cached sessions from fn.
func (m *SessionMetrics) ObserveActive(fn func() int64) error {
	if m == nil || fn == nil {
		return nil
	}
	_, err := m.meter.Int64ObservableGauge("session.active",
		metric.WithDescription("Sessions held in the in-memory cache"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(fn())
			return nil
		}))
	return err
}

// SessionCreated counts one new session.
func (m *SessionMetrics) SessionCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.created.Add(ctx, 1)
}

// SessionEnded counts a session leaving the active state and records its age.
func (m *SessionMetrics) SessionEnded(ctx context.Context, reason string, age time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("reason", reason))
	m.ended.Add(ctx, 1, attrs)
	if age > 0 {
		m.age.Record(ctx, age.Hours(), attrs)
	}
}

// HijackDetected counts one binding violation.
func (m *SessionMetrics) HijackDetected(ctx context.Context) {
	if m == nil {
		return
	}
	m.hijacks.Add(ctx, 1)
}

// LoginFailed counts one failed credential or refresh attempt.
func (m *SessionMetrics) LoginFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.failedLogins.Add(ctx, 1)
}

// RateLimited counts one request turned away by the limiter.
func (m *SessionMetrics) RateLimited(ctx context.Context) {
	if m == nil {
		return
	}
	m.rateLimited.Add(ctx, 1)
}
