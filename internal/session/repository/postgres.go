package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"session-gate/internal/storage"
)

const sessionColumns = `session_id_hash, session_salt, user_id, data_encrypted, created_at, updated_at, expires_at,
	ip_address, user_agent, created_ip, last_activity, last_activity_ip, refresh_token_hash, refresh_expires_at, is_valid`

// ErrUnknownColumn is returned by Apply for a column outside the allowlist.
var ErrUnknownColumn = errors.New("session: unknown column")

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Table implements storage.Applier.
func (r *PostgresRepository) Table() string { return Table }

// Insert persists a new row.
func (r *PostgresRepository) Insert(ctx context.Context, row *Row) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		row.SessionIDHash, row.SessionSalt, row.UserID, row.DataEncrypted, row.CreatedAt, row.UpdatedAt, row.ExpiresAt,
		row.IPAddress, row.UserAgent, row.CreatedIP, row.LastActivity, row.LastActivityIP,
		row.RefreshTokenHash, row.RefreshExpiresAt, boolToSmallint(row.IsValid),
	)
	return err
}

// FindByHash returns the valid row for hash, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) FindByHash(ctx context.Context, hash string) (*Row, error) {
	row, err := scanRow(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id_hash = $1 AND is_valid = 1`, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

// InvalidateUser marks all sessions of userID invalid.
func (r *PostgresRepository) InvalidateUser(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET is_valid = 0 WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByUser returns all rows of userID, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*Row, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Apply runs one staged update as an UPDATE statement. Column names come from a fixed allowlist.
func (r *PostgresRepository) Apply(ctx context.Context, m storage.Mutation) (int64, error) {
	query, args, err := buildUpdate(m)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func buildUpdate(m storage.Mutation) (string, []any, error) {
	if m.Table != Table {
		return "", nil, fmt.Errorf("session: mutation for table %q", m.Table)
	}
	if !matchable[m.Column] {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownColumn, m.Column)
	}
	if len(m.Set) == 0 {
		return "", nil, errors.New("session: empty mutation")
	}
	cols := make([]string, 0, len(m.Set))
	for col := range m.Set {
		if !updatable[col] {
			return "", nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var b strings.Builder
	b.WriteString("UPDATE sessions SET ")
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		v := m.Set[col]
		if flag, ok := v.(bool); ok {
			v = boolToSmallint(flag)
		}
		args = append(args, v)
		b.WriteString(col + " = $" + strconv.Itoa(len(args)))
	}
	var match any = m.Value
	if m.Column == ColUserID {
		id, err := strconv.ParseInt(m.Value, 10, 64)
		if err != nil {
			return "", nil, fmt.Errorf("session: user_id %q: %w", m.Value, err)
		}
		match = id
	}
	args = append(args, match)
	b.WriteString(" WHERE " + m.Column + " = $" + strconv.Itoa(len(args)))
	return b.String(), args, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (*Row, error) {
	var (
		row   Row
		valid int16
	)
	err := s.Scan(
		&row.SessionIDHash, &row.SessionSalt, &row.UserID, &row.DataEncrypted, &row.CreatedAt, &row.UpdatedAt, &row.ExpiresAt,
		&row.IPAddress, &row.UserAgent, &row.CreatedIP, &row.LastActivity, &row.LastActivityIP,
		&row.RefreshTokenHash, &row.RefreshExpiresAt, &valid,
	)
	if err != nil {
		return nil, err
	}
	row.IsValid = valid != 0
	return &row, nil
}

func boolToSmallint(b bool) int16 {
	if b {
		return 1
	}
	return 0
}
