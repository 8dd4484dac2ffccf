// Package audit records session lifecycle events. Every event is persisted best-effort and
// fanned out to optional publishers (Kafka, OTel logs) without blocking the caller.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"session-gate/internal/audit/domain"
	auditrepo "session-gate/internal/audit/repository"
	"session-gate/internal/security"
	"session-gate/internal/telemetry"
)

// DefaultQueueSize is the number of recent events kept in memory when no size is configured.
const DefaultQueueSize = 1024

// HijackDetails is the details text of a hijack_attempt event.
const HijackDetails = "Session accessed from different IP"

// Publisher receives a copy of every audit event. Implementations must not retain the pointer.
type Publisher interface {
	Publish(ctx context.Context, event *domain.AuditLog) error
}

// SessionAuditor is the audit surface the session manager and auth gate depend on.
type SessionAuditor interface {
	LogSessionEvent(ctx context.Context, sessionID string, userID int64, action, ip, userAgent, details string)
	DetectHijackAttempt(ctx context.Context, sessionID, newIP string)
}

// Logger implements SessionAuditor. Raw session ids are reduced to a fingerprint before anything
// leaves this type.
type Logger struct {
	repo       auditrepo.Repository
	publishers []Publisher
	logger     *zap.Logger
	nowF       func() time.Time

	mu    sync.Mutex
	queue []domain.AuditLog
	size  int
}

// NewLogger returns a Logger that persists to repo and keeps the last queueSize events in memory.
// repo may be nil, in which case events are only queued and published.
func NewLogger(repo auditrepo.Repository, queueSize int, logger *zap.Logger, publishers ...Publisher) *Logger {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{
		repo:       repo,
		publishers: publishers,
		logger:     logger,
		nowF:       time.Now,
		size:       queueSize,
	}
}

// LogSessionEvent records one event. Best-effort: storage and publish failures are logged, never returned.
func (l *Logger) LogSessionEvent(ctx context.Context, sessionID string, userID int64, action, ip, userAgent, details string) {
	entry := domain.AuditLog{
		EventID:   uuid.New().String(),
		SessionID: security.Fingerprint(sessionID),
		UserID:    userID,
		Action:    action,
		IPAddress: ip,
		UserAgent: userAgent,
		Timestamp: l.nowF().UTC(),
		Details:   details,
	}

	if l.repo != nil {
		if err := l.repo.Create(ctx, &entry); err != nil {
			l.logger.Error("audit: persist failed",
				zap.String("action", action),
				zap.String("session_fp", entry.SessionID),
				zap.Error(err),
			)
		}
	}
	l.enqueue(entry)

	for _, p := range l.publishers {
		event := entry
		telemetry.RunAsync(l.logger, "audit:"+action, func(ctx context.Context) error {
			return p.Publish(ctx, &event)
		})
	}
}

// DetectHijackAttempt records a hijack_attempt for sessionID seen from newIP.
func (l *Logger) DetectHijackAttempt(ctx context.Context, sessionID, newIP string) {
	l.logger.Warn("session hijack attempt",
		zap.String("session_fp", security.Fingerprint(sessionID)),
		zap.String("ip", newIP),
	)
	l.LogSessionEvent(ctx, sessionID, 0, domain.ActionHijackAttempt, newIP, "", HijackDetails)
}

// Recent returns the queued events oldest first.
func (l *Logger) Recent() []domain.AuditLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.AuditLog, len(l.queue))
	copy(out, l.queue)
	return out
}

// enqueue appends entry, dropping the oldest event when full.
func (l *Logger) enqueue(entry domain.AuditLog) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) >= l.size {
		l.queue = append(l.queue[:0], l.queue[1:]...)
	}
	l.queue = append(l.queue, entry)
}
