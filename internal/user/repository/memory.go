package repository

import (
	"context"
	"sync"
	"time"

	"session-gate/internal/user/domain"
)

// MemoryRepository keeps users in process. Used when no database is configured and in tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[int64]domain.User
	nextID int64
}

// NewMemoryRepository returns an empty in-memory user repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[int64]domain.User), nextID: 1}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Username == u.Username {
			return ErrUsernameTaken
		}
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	u.ID = r.nextID
	r.nextID++
	r.byID[u.ID] = *u
	return nil
}

func (r *MemoryRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u
	return nil
}
