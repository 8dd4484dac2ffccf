package domain

import (
	"errors"
	"time"
)

// User is an account that can own sessions.
type User struct {
	ID           int64
	Username     string
	Email        string
	Role         string
	PasswordHash string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}

// Active reports whether the account may log in.
func (u *User) Active() bool {
	return u != nil && u.Status != UserStatusDisabled
}

// Fields returns the user row as exposed on the current request. The password hash is never included.
func (u *User) Fields() map[string]any {
	if u == nil {
		return nil
	}
	return map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"role":       u.Role,
		"status":     string(u.Status),
		"created_at": u.CreatedAt,
	}
}
