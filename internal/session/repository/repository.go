package repository

import (
	"context"
	"time"

	"session-gate/internal/storage"
)

// Table is the durable session table.
const Table = "sessions"

// Columns the manager stages through storage.Pending.
const (
	ColSessionIDHash  = "session_id_hash"
	ColUserID         = "user_id"
	ColDataEncrypted  = "data_encrypted"
	ColUpdatedAt      = "updated_at"
	ColLastActivity   = "last_activity"
	ColLastActivityIP = "last_activity_ip"
	ColIsValid        = "is_valid"
)

// Row is the durable form of a session. It never carries the raw session id or refresh token.
type Row struct {
	SessionIDHash    string
	SessionSalt      string
	UserID           int64
	DataEncrypted    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ExpiresAt        time.Time
	IPAddress        string
	UserAgent        string
	CreatedIP        string
	LastActivity     time.Time
	LastActivityIP   string
	RefreshTokenHash string
	RefreshExpiresAt time.Time
	IsValid          bool
}

// Repository defines persistence for sessions. Lookups are by hash only.
type Repository interface {
	storage.Applier
	Insert(ctx context.Context, row *Row) error
	// FindByHash returns nil, nil when no valid row has hash. Invalidated rows are never returned.
	FindByHash(ctx context.Context, hash string) (*Row, error)
	// InvalidateUser marks every row of userID invalid in one statement and returns the rows affected.
	InvalidateUser(ctx context.Context, userID int64) (int64, error)
	// ListByUser returns every row of userID, including invalidated ones.
	ListByUser(ctx context.Context, userID int64) ([]*Row, error)
}

// updatable lists the columns Apply may set.
var updatable = map[string]bool{
	ColUserID:         true,
	ColDataEncrypted:  true,
	ColUpdatedAt:      true,
	ColLastActivity:   true,
	ColLastActivityIP: true,
	ColIsValid:        true,
}

// matchable lists the columns Apply may select rows by.
var matchable = map[string]bool{
	ColSessionIDHash: true,
	ColUserID:        true,
}
