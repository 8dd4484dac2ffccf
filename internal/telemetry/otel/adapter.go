package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	auditdomain "session-gate/internal/audit/domain"
)

const auditScope = "session-gate.audit"

// recordEmitter is the part of otellog.Logger the sink uses.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// AuditSink mirrors audit events as OTel log records. It satisfies audit.Publisher.
type AuditSink struct {
	logger recordEmitter
}

// NewAuditSink returns a sink that emits through provider. A nil provider yields a sink that drops events.
func NewAuditSink(provider *sdklog.LoggerProvider) *AuditSink {
	if provider == nil {
		return &AuditSink{}
	}
	return &AuditSink{logger: provider.Logger(auditScope)}
}

// NewAuditSinkWithLogger returns a sink over any record emitter.
func NewAuditSinkWithLogger(l recordEmitter) *AuditSink {
	return &AuditSink{logger: l}
}

// Publish converts the event to a log record and emits it.
func (s *AuditSink) Publish(ctx context.Context, event *auditdomain.AuditLog) error {
	if s == nil || s.logger == nil || event == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetSeverity(severityFor(event.Action))
	rec.SetBody(otellog.StringValue(event.Details))
	rec.AddAttributes(
		otellog.String("action", event.Action),
		otellog.Int64("user_id", event.UserID),
	)
	if event.SessionID != "" {
		rec.AddAttributes(otellog.String("session_fp", event.SessionID))
	}
	if event.IPAddress != "" {
		rec.AddAttributes(otellog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		rec.AddAttributes(otellog.String("user_agent", event.UserAgent))
	}
	if event.EventID != "" {
		rec.AddAttributes(otellog.String("event_id", event.EventID))
	}
	s.logger.Emit(ctx, rec)
	return nil
}

func severityFor(action string) otellog.Severity {
	switch action {
	case auditdomain.ActionHijackAttempt, auditdomain.ActionRevokeAll:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityInfo
	}
}
