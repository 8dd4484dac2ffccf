package repository

import (
	"context"

	"session-gate/internal/audit/domain"
)

// Repository defines persistence for the session audit log. Rows are append-only.
type Repository interface {
	// Create appends a and sets a.ID.
	Create(ctx context.Context, a *domain.AuditLog) error
	ListRecent(ctx context.Context, limit, offset int32) ([]*domain.AuditLog, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int32) ([]*domain.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int32) ([]*domain.AuditLog, error)
}
