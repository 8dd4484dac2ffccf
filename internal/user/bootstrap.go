// Package user bootstraps accounts on top of the user repository.
package user

import (
	"context"
	"errors"
	"fmt"

	"session-gate/internal/security"
	"session-gate/internal/user/domain"
	"session-gate/internal/user/repository"
)

// ErrEmptyPassword is returned by EnsureAdmin when no password is given.
var ErrEmptyPassword = errors.New("user: admin password is empty")

// EnsureAdmin creates an active admin named username unless a user with that name exists.
// It reports whether a user was created.
func EnsureAdmin(ctx context.Context, repo repository.Repository, hasher *security.Hasher, username, password string) (bool, error) {
	if password == "" {
		return false, ErrEmptyPassword
	}
	existing, err := repo.GetByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("lookup %q: %w", username, err)
	}
	if existing != nil {
		return false, nil
	}
	hash, err := hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{
		Username:     username,
		Role:         domain.RoleAdmin,
		Status:       domain.UserStatusActive,
		PasswordHash: hash,
	}
	if err := repo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return false, nil
		}
		return false, fmt.Errorf("create %q: %w", username, err)
	}
	return true, nil
}
