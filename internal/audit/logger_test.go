package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"session-gate/internal/audit/domain"
	"session-gate/internal/security"
)

// mockAuditRepo implements the audit repository interface for tests.
type mockAuditRepo struct {
	mu        sync.Mutex
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockAuditRepo) ListRecent(ctx context.Context, limit, offset int32) ([]*domain.AuditLog, error) {
	return m.entries, nil
}

func (m *mockAuditRepo) ListByUser(ctx context.Context, userID int64, limit, offset int32) ([]*domain.AuditLog, error) {
	return nil, nil
}

func (m *mockAuditRepo) ListByAction(ctx context.Context, action string, limit, offset int32) ([]*domain.AuditLog, error) {
	return nil, nil
}

type chanPublisher struct {
	ch chan domain.AuditLog
}

func (p *chanPublisher) Publish(ctx context.Context, event *domain.AuditLog) error {
	p.ch <- *event
	return nil
}

const rawSessionID = "3f1c9b2a7d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8"

func TestLogger_LogSessionEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	l := NewLogger(repo, 10, nil)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	l.nowF = func() time.Time { return fixed }

	l.LogSessionEvent(context.Background(), rawSessionID, 7, domain.ActionCreate, "10.0.0.1", "UA", "New session created")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.SessionID != security.Fingerprint(rawSessionID) {
		t.Errorf("session_id = %q, want fingerprint", e.SessionID)
	}
	if e.SessionID == rawSessionID {
		t.Error("raw session id must not be persisted")
	}
	if e.UserID != 7 || e.Action != domain.ActionCreate || e.IPAddress != "10.0.0.1" || e.UserAgent != "UA" {
		t.Errorf("entry = %+v", e)
	}
	if e.Details != "New session created" {
		t.Errorf("details = %q", e.Details)
	}
	if !e.Timestamp.Equal(fixed) || e.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp = %v, want %v in UTC", e.Timestamp, fixed)
	}
	if e.EventID == "" {
		t.Error("event id should be set")
	}
}

func TestLogger_LogSessionEvent_EmptySessionID(t *testing.T) {
	repo := &mockAuditRepo{}
	l := NewLogger(repo, 10, nil)
	l.LogSessionEvent(context.Background(), "", 3, domain.ActionRevokeAll, "", "", "All sessions revoked: test")
	if len(repo.entries) != 1 || repo.entries[0].SessionID != "" {
		t.Fatalf("entries = %+v", repo.entries)
	}
}

func TestLogger_LogSessionEvent_RepoErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	repo := &mockAuditRepo{createErr: errors.New("db down")}
	l := NewLogger(repo, 10, zap.New(core))

	l.LogSessionEvent(context.Background(), rawSessionID, 1, domain.ActionLoad, "ip", "ua", "")

	if logs.FilterMessage("audit: persist failed").Len() != 1 {
		t.Fatalf("expected persist failure log, got %v", logs.All())
	}
	for _, entry := range logs.All() {
		for _, f := range entry.Context {
			if f.String == rawSessionID {
				t.Error("raw session id leaked into logs")
			}
		}
	}
	if len(l.Recent()) != 1 {
		t.Error("event should still be queued when persistence fails")
	}
}

func TestLogger_NilRepo(t *testing.T) {
	l := NewLogger(nil, 10, nil)
	l.LogSessionEvent(context.Background(), rawSessionID, 1, domain.ActionLoad, "", "", "")
	if len(l.Recent()) != 1 {
		t.Error("event should be queued without a repo")
	}
}

func TestLogger_QueueDropsOldest(t *testing.T) {
	l := NewLogger(nil, 2, nil)
	ctx := context.Background()
	l.LogSessionEvent(ctx, "", 1, domain.ActionCreate, "", "", "first")
	l.LogSessionEvent(ctx, "", 1, domain.ActionLoad, "", "", "second")
	l.LogSessionEvent(ctx, "", 1, domain.ActionLogout, "", "", "third")

	got := l.Recent()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Details != "second" || got[1].Details != "third" {
		t.Errorf("queue = %q, %q", got[0].Details, got[1].Details)
	}
}

func TestLogger_DetectHijackAttempt(t *testing.T) {
	repo := &mockAuditRepo{}
	l := NewLogger(repo, 10, nil)

	l.DetectHijackAttempt(context.Background(), rawSessionID, "10.0.0.2")

	if len(repo.entries) != 1 {
		t.Fatalf("expected exactly 1 entry, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.Action != domain.ActionHijackAttempt {
		t.Errorf("action = %q", e.Action)
	}
	if e.UserID != 0 || e.UserAgent != "" {
		t.Errorf("user_id = %d, user_agent = %q", e.UserID, e.UserAgent)
	}
	if e.IPAddress != "10.0.0.2" || e.Details != HijackDetails {
		t.Errorf("entry = %+v", e)
	}
}

func TestLogger_Publishers(t *testing.T) {
	pub := &chanPublisher{ch: make(chan domain.AuditLog, 1)}
	l := NewLogger(nil, 10, nil, pub)

	l.LogSessionEvent(context.Background(), rawSessionID, 9, domain.ActionLogin, "1.2.3.4", "ua", "User bob logged in")

	select {
	case got := <-pub.ch:
		if got.Action != domain.ActionLogin || got.UserID != 9 {
			t.Errorf("published = %+v", got)
		}
		if got.SessionID != security.Fingerprint(rawSessionID) {
			t.Error("published event should carry the fingerprint")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publisher was not called")
	}
}
