package repository

import (
	"context"
	"errors"

	"session-gate/internal/user/domain"
)

// ErrUsernameTaken is returned by Create when the username already exists.
var ErrUsernameTaken = errors.New("user: username taken")

// Repository defines persistence for users.
type Repository interface {
	// GetByID returns nil, nil when no user has id.
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	// GetByUsername returns nil, nil when no user has username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// Create persists u and sets u.ID.
	Create(ctx context.Context, u *domain.User) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}
