package repository

import (
	"context"
	"errors"
	"testing"

	"session-gate/internal/user/domain"
)

var _ Repository = (*MemoryRepository)(nil)
var _ Repository = (*PostgresRepository)(nil)

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	u := &domain.User{Username: "alice", PasswordHash: "h"}
	if err := r.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID != 1 {
		t.Errorf("ID = %d, want 1", u.ID)
	}

	got, err := r.GetByID(ctx, u.ID)
	if err != nil || got == nil || got.Username != "alice" || got.Role != domain.RoleUser {
		t.Fatalf("GetByID = %+v, %v", got, err)
	}
	got, _ = r.GetByUsername(ctx, "alice")
	if got == nil || got.ID != u.ID {
		t.Errorf("GetByUsername = %+v", got)
	}
	if missing, err := r.GetByID(ctx, 99); missing != nil || err != nil {
		t.Errorf("GetByID(missing) = %+v, %v", missing, err)
	}
}

func TestMemoryRepository_DuplicateUsername(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	_ = r.Create(ctx, &domain.User{Username: "alice", PasswordHash: "h"})
	err := r.Create(ctx, &domain.User{Username: "alice", PasswordHash: "h2"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("err = %v, want ErrUsernameTaken", err)
	}
}

func TestMemoryRepository_UpdatePasswordHash(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	u := &domain.User{Username: "alice", PasswordHash: "old"}
	_ = r.Create(ctx, u)
	if err := r.UpdatePasswordHash(ctx, u.ID, "new"); err != nil {
		t.Fatal(err)
	}
	got, _ := r.GetByID(ctx, u.ID)
	if got.PasswordHash != "new" {
		t.Errorf("PasswordHash = %q", got.PasswordHash)
	}
	if err := r.UpdatePasswordHash(ctx, 42, "x"); err != nil {
		t.Errorf("missing user should be ignored: %v", err)
	}
}
