package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"session-gate/internal/storage"
)

// ErrDuplicateHash is returned by Insert when a row with the same hash exists.
var ErrDuplicateHash = errors.New("session: duplicate session_id_hash")

// MemoryRepository keeps session rows in process. Used when no database is configured and in tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]Row
}

// NewMemoryRepository returns an empty in-memory session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]Row)}
}

func (r *MemoryRepository) Table() string { return Table }

func (r *MemoryRepository) Insert(ctx context.Context, row *Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[row.SessionIDHash]; ok {
		return ErrDuplicateHash
	}
	r.rows[row.SessionIDHash] = *row
	return nil
}

func (r *MemoryRepository) FindByHash(ctx context.Context, hash string) (*Row, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[hash]
	if !ok || !row.IsValid {
		return nil, nil
	}
	return &row, nil
}

func (r *MemoryRepository) InvalidateUser(ctx context.Context, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, row := range r.rows {
		if row.UserID == userID {
			row.IsValid = false
			r.rows[hash] = row
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID int64) ([]*Row, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Row
	for _, row := range r.rows {
		if row.UserID == userID {
			row := row
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Apply updates every row matching m and returns how many matched.
func (r *MemoryRepository) Apply(ctx context.Context, m storage.Mutation) (int64, error) {
	if m.Table != Table {
		return 0, fmt.Errorf("session: mutation for table %q", m.Table)
	}
	if !matchable[m.Column] {
		return 0, fmt.Errorf("%w: %s", ErrUnknownColumn, m.Column)
	}
	for col := range m.Set {
		if !updatable[col] {
			return 0, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, row := range r.rows {
		if !rowMatches(&row, m.Column, m.Value) {
			continue
		}
		if err := setColumns(&row, m.Set); err != nil {
			return n, err
		}
		r.rows[hash] = row
		n++
	}
	return n, nil
}

func rowMatches(row *Row, column, value string) bool {
	switch column {
	case ColSessionIDHash:
		return row.SessionIDHash == value
	case ColUserID:
		return strconv.FormatInt(row.UserID, 10) == value
	}
	return false
}

func setColumns(row *Row, set map[string]any) error {
	for col, v := range set {
		var ok bool
		switch col {
		case ColUserID:
			row.UserID, ok = v.(int64)
		case ColDataEncrypted:
			row.DataEncrypted, ok = v.(string)
		case ColUpdatedAt:
			row.UpdatedAt, ok = v.(time.Time)
		case ColLastActivity:
			row.LastActivity, ok = v.(time.Time)
		case ColLastActivityIP:
			row.LastActivityIP, ok = v.(string)
		case ColIsValid:
			row.IsValid, ok = v.(bool)
		}
		if !ok {
			return fmt.Errorf("session: column %s: unexpected value type %T", col, v)
		}
	}
	return nil
}
