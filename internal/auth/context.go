package auth

import (
	"context"

	"session-gate/internal/session/domain"
)

type contextKey struct{ name string }

var currentUserKey = contextKey{"current_user"}

// CurrentUser is the identity resolved for one request. It is created by Gate.Middleware and
// lives in the request context; it is never shared between requests.
type CurrentUser struct {
	Authenticated bool
	UserID        int64
	Role          string
	Status        string
	// Fields is the user profile. It never includes the password hash.
	Fields map[string]any

	SessionID    string
	RefreshToken string
	Session      *domain.Session

	IPAddress string
	UserAgent string
}

// clear drops the identity and keeps the request's client info.
func (u *CurrentUser) clear() {
	*u = CurrentUser{IPAddress: u.IPAddress, UserAgent: u.UserAgent}
}

// WithCurrentUser returns a context carrying u.
func WithCurrentUser(ctx context.Context, u *CurrentUser) context.Context {
	return context.WithValue(ctx, currentUserKey, u)
}

// CurrentUserFrom returns the request's identity and true if the middleware attached one.
func CurrentUserFrom(ctx context.Context) (*CurrentUser, bool) {
	u, ok := ctx.Value(currentUserKey).(*CurrentUser)
	return u, ok && u != nil
}
