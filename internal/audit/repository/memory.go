package repository

import (
	"context"
	"sync"

	"session-gate/internal/audit/domain"
)

// MemoryRepository keeps audit rows in process. Used when no database is configured and in tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	rows   []domain.AuditLog
	nextID int64
}

// NewMemoryRepository returns an empty in-memory audit log.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1}
}

// Create appends a copy of a and sets a.ID.
func (r *MemoryRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = r.nextID
	r.nextID++
	r.rows = append(r.rows, *a)
	return nil
}

// ListRecent returns rows newest first.
func (r *MemoryRepository) ListRecent(ctx context.Context, limit, offset int32) ([]*domain.AuditLog, error) {
	return r.filter(limit, offset, func(*domain.AuditLog) bool { return true }), nil
}

// ListByUser returns rows for userID newest first.
func (r *MemoryRepository) ListByUser(ctx context.Context, userID int64, limit, offset int32) ([]*domain.AuditLog, error) {
	return r.filter(limit, offset, func(a *domain.AuditLog) bool { return a.UserID == userID }), nil
}

// ListByAction returns rows for action newest first.
func (r *MemoryRepository) ListByAction(ctx context.Context, action string, limit, offset int32) ([]*domain.AuditLog, error) {
	return r.filter(limit, offset, func(a *domain.AuditLog) bool { return a.Action == action }), nil
}

func (r *MemoryRepository) filter(limit, offset int32, keep func(*domain.AuditLog) bool) []*domain.AuditLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.AuditLog
	skipped := int32(0)
	for i := len(r.rows) - 1; i >= 0; i-- {
		row := r.rows[i]
		if !keep(&row) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if limit > 0 && int32(len(out)) >= limit {
			break
		}
		out = append(out, &row)
	}
	return out
}
