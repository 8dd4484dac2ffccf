package repository

import (
	"context"
	"database/sql"

	"session-gate/internal/audit/domain"
)

const auditColumns = `id, session_id, user_id, action, ip_address, user_agent, timestamp, details`

// PostgresRepository stores audit rows in session_audit_log.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a and sets a.ID from the generated key.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO session_audit_log (session_id, user_id, action, ip_address, user_agent, timestamp, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		a.SessionID, a.UserID, a.Action, a.IPAddress, a.UserAgent, a.Timestamp, a.Details,
	).Scan(&a.ID)
}

// ListRecent returns audit rows newest first.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit, offset int32) ([]*domain.AuditLog, error) {
	return r.list(ctx, `SELECT `+auditColumns+` FROM session_audit_log ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
}

// ListByUser returns audit rows for userID newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64, limit, offset int32) ([]*domain.AuditLog, error) {
	return r.list(ctx, `SELECT `+auditColumns+` FROM session_audit_log WHERE user_id = $3 ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset, userID)
}

// ListByAction returns audit rows for action newest first.
func (r *PostgresRepository) ListByAction(ctx context.Context, action string, limit, offset int32) ([]*domain.AuditLog, error) {
	return r.list(ctx, `SELECT `+auditColumns+` FROM session_audit_log WHERE action = $3 ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset, action)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		if err := rows.Scan(&a.ID, &a.SessionID, &a.UserID, &a.Action, &a.IPAddress, &a.UserAgent, &a.Timestamp, &a.Details); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
