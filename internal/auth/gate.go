// Package auth resolves the caller's identity from the session cookie on every request and issues,
// refreshes and clears the cookie on login, refresh and logout. Guards reply with generic JSON errors.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"session-gate/internal/audit"
	auditdomain "session-gate/internal/audit/domain"
	"session-gate/internal/policy/engine"
	"session-gate/internal/security"
	"session-gate/internal/session"
	sessiondomain "session-gate/internal/session/domain"
	"session-gate/internal/storage"
	"session-gate/internal/telemetry"
	userdomain "session-gate/internal/user/domain"
)

// Critical event reasons recorded on revoke_all.
const (
	ReasonPasswordChanged    = "Password changed"
	ReasonAccountCompromised = "Account compromised - security alert triggered"
)

// ErrNoCurrentUser is returned when a request did not pass through Middleware.
var ErrNoCurrentUser = errors.New("auth: no current user on request")

// SessionManager is the session lifecycle the gate drives.
type SessionManager interface {
	Create(ctx context.Context, userID int64, ip, userAgent string) (*sessiondomain.Session, error)
	Load(ctx context.Context, id, ip, userAgent string) (*sessiondomain.Session, error)
	Refresh(ctx context.Context, id, refreshToken, ip, userAgent string) (*sessiondomain.Session, error)
	Save(ctx context.Context, sess *sessiondomain.Session) error
	Destroy(ctx context.Context, id string) error
	RevokeAll(ctx context.Context, userID int64, reason string) int64
}

// UserLookup fetches user rows by id.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*userdomain.User, error)
}

// Gate is the authentication boundary between HTTP and the session core.
type Gate struct {
	sessions SessionManager
	users    UserLookup
	auditor  audit.SessionAuditor
	limiter  session.RateLimiter
	authz    engine.Authorizer
	hasher   *security.Hasher
	cookies  *CookieManager
	metrics  *telemetry.SessionMetrics
	logger   *zap.Logger
}

// NewGate wires a Gate. metrics and logger may be nil.
func NewGate(
	sessions SessionManager,
	users UserLookup,
	auditor audit.SessionAuditor,
	limiter session.RateLimiter,
	authz engine.Authorizer,
	hasher *security.Hasher,
	cookies *CookieManager,
	metrics *telemetry.SessionMetrics,
	logger *zap.Logger,
) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		sessions: sessions,
		users:    users,
		auditor:  auditor,
		limiter:  limiter,
		authz:    authz,
		hasher:   hasher,
		cookies:  cookies,
		metrics:  metrics,
		logger:   logger,
	}
}

// Middleware attaches a fresh storage.Pending and the resolved CurrentUser to each request.
// The staging area is cleared when the request returns, on every path.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pending := storage.NewPending()
		defer pending.Clear()

		ctx := storage.WithPending(r.Context(), pending)
		cu := g.resolve(ctx, r)
		ctx = WithCurrentUser(ctx, cu)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolve loads the identity behind the session cookie. Every failure leaves the caller unauthenticated.
func (g *Gate) resolve(ctx context.Context, r *http.Request) *CurrentUser {
	cu := &CurrentUser{
		IPAddress:    ClientIP(r),
		UserAgent:    UserAgent(r),
		RefreshToken: RefreshCookie(r),
	}
	sid := SessionCookie(r)
	if sid == "" {
		return cu
	}
	sess, err := g.sessions.Load(ctx, sid, cu.IPAddress, cu.UserAgent)
	if err != nil {
		g.logger.Warn("auth: session load failed", zap.String("session_fp", security.Fingerprint(sid)), zap.Error(err))
		return cu
	}
	if sess == nil || !sess.Exists || !sess.IsValid || sess.UserID == 0 {
		return cu
	}
	u, err := g.users.GetByID(ctx, sess.UserID)
	if err != nil {
		g.logger.Warn("auth: user lookup failed", zap.Int64("user_id", sess.UserID), zap.Error(err))
		return cu
	}
	if !u.Active() {
		return cu
	}
	g.populate(cu, u, sess)
	return cu
}

func (g *Gate) populate(cu *CurrentUser, u *userdomain.User, sess *sessiondomain.Session) {
	cu.Authenticated = true
	cu.UserID = u.ID
	cu.Role = u.Role
	cu.Status = string(u.Status)
	cu.Fields = u.Fields()
	cu.SessionID = sess.SessionID
	cu.Session = sess
	if sess.RefreshToken != "" {
		cu.RefreshToken = sess.RefreshToken
	}
}

// current returns the request's identity, or a detached one when Middleware did not run.
func current(r *http.Request) *CurrentUser {
	if cu, ok := CurrentUserFrom(r.Context()); ok {
		return cu
	}
	return &CurrentUser{IPAddress: ClientIP(r), UserAgent: UserAgent(r), RefreshToken: RefreshCookie(r)}
}

// LoginUser starts a session for u, sets the session cookie, refresh header and hardening headers,
// and marks the request authenticated. Errors are session error kinds; see session.KindOf.
func (g *Gate) LoginUser(w http.ResponseWriter, r *http.Request, u *userdomain.User) error {
	ctx := r.Context()
	cu := current(r)
	sess, err := g.sessions.Create(ctx, u.ID, cu.IPAddress, cu.UserAgent)
	if err != nil {
		return err
	}
	g.cookies.SetSession(w, sess.SessionID, sess.RefreshToken)
	SetSecurityHeaders(w)

	g.auditor.LogSessionEvent(ctx, sess.SessionID, u.ID, auditdomain.ActionLogin, cu.IPAddress, cu.UserAgent,
		"User "+u.Username+" logged in")
	g.limiter.ClearFailedAttempts(cu.IPAddress)
	g.populate(cu, u, sess)
	return nil
}

// LogoutUser destroys the current session, expires the cookie and clears the identity. Only a session
// this request resolved is destroyed; a cookie that failed to resolve, for instance from another ip, is
// left alone.
func (g *Gate) LogoutUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cu := current(r)
	if sid := cu.SessionID; sid != "" {
		if err := g.sessions.Destroy(ctx, sid); err != nil {
			g.logger.Warn("auth: destroy failed", zap.String("session_fp", security.Fingerprint(sid)), zap.Error(err))
		}
		g.auditor.LogSessionEvent(ctx, sid, cu.UserID, auditdomain.ActionLogout, cu.IPAddress, cu.UserAgent, "User logged out")
	}
	g.cookies.ClearSession(w)
	cu.clear()
}

// RefreshSessionToken exchanges the session and refresh cookies for a new session. Any failure logs
// the caller out and returns false.
func (g *Gate) RefreshSessionToken(w http.ResponseWriter, r *http.Request) bool {
	ctx := r.Context()
	cu := current(r)
	sid := SessionCookie(r)
	refresh := RefreshCookie(r)
	if sid == "" || refresh == "" {
		return false
	}
	fresh, err := g.sessions.Refresh(ctx, sid, refresh, cu.IPAddress, cu.UserAgent)
	if err != nil {
		if session.KindOf(err) == session.KindInvalid {
			g.metrics.LoginFailed(ctx)
		}
		g.logger.Info("auth: refresh rejected",
			zap.String("session_fp", security.Fingerprint(sid)),
			zap.Stringer("kind", session.KindOf(err)),
		)
		g.LogoutUser(w, r)
		return false
	}
	g.cookies.SetSession(w, fresh.SessionID, fresh.RefreshToken)

	u, err := g.users.GetByID(ctx, fresh.UserID)
	if err != nil || !u.Active() {
		g.logger.Warn("auth: user lookup after refresh failed", zap.Int64("user_id", fresh.UserID), zap.Error(err))
		cu.SessionID, cu.Session, cu.RefreshToken = fresh.SessionID, fresh, fresh.RefreshToken
		return true
	}
	g.populate(cu, u, fresh)
	return true
}

// UpdateSessionData replaces the current session's payload and persists it.
func (g *Gate) UpdateSessionData(r *http.Request, data string) error {
	cu, ok := CurrentUserFrom(r.Context())
	if !ok || !cu.Authenticated || cu.Session == nil {
		return ErrNoCurrentUser
	}
	cu.Session.Data = data
	return g.sessions.Save(r.Context(), cu.Session)
}

// RequireAuth replies 401 and returns false when the request is not authenticated.
func (g *Gate) RequireAuth(w http.ResponseWriter, r *http.Request) bool {
	if cu, ok := CurrentUserFrom(r.Context()); ok && cu.Authenticated {
		return true
	}
	writeErr(w, http.StatusUnauthorized, "Unauthorized")
	return false
}

// RequireAdmin replies 401 when unauthenticated and 403 when the policy denies admin access.
func (g *Gate) RequireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if !g.RequireAuth(w, r) {
		return false
	}
	cu, _ := CurrentUserFrom(r.Context())
	allowed, err := g.authz.IsAdmin(r.Context(), engine.Subject{UserID: cu.UserID, Role: cu.Role, Status: cu.Status})
	if err != nil {
		g.logger.Error("auth: admin policy failed", zap.Int64("user_id", cu.UserID), zap.Error(err))
	}
	if err != nil || !allowed {
		writeErr(w, http.StatusForbidden, "Forbidden")
		return false
	}
	return true
}

// RequireReauthentication re-reads the current user and verifies password against the stored hash.
// Failures count against the caller's IP.
func (g *Gate) RequireReauthentication(r *http.Request, password string) bool {
	ctx := r.Context()
	cu, ok := CurrentUserFrom(ctx)
	if !ok || !cu.Authenticated {
		return false
	}
	if g.IsLoginRateLimited(ctx, cu.IPAddress) {
		return false
	}
	u, err := g.users.GetByID(ctx, cu.UserID)
	if err != nil {
		g.logger.Warn("auth: reauthentication lookup failed", zap.Int64("user_id", cu.UserID), zap.Error(err))
		return false
	}
	if !u.Active() || !g.hasher.Verify(u.PasswordHash, password) {
		g.RecordFailedLogin(ctx, cu.IPAddress)
		return false
	}
	return true
}

// IsLoginRateLimited reports whether ip has exhausted its failed attempts.
func (g *Gate) IsLoginRateLimited(ctx context.Context, ip string) bool {
	if g.limiter.IsRateLimited(ip) {
		g.metrics.RateLimited(ctx)
		return true
	}
	return false
}

// RecordFailedLogin counts one failed credential check for ip.
func (g *Gate) RecordFailedLogin(ctx context.Context, ip string) {
	g.limiter.RecordFailedAttempt(ip)
	g.metrics.LoginFailed(ctx)
}

// RevokeAllOnCriticalEvent revokes every session of userID and logs the caller out if it is that user.
// It returns the number of durable sessions invalidated.
func (g *Gate) RevokeAllOnCriticalEvent(w http.ResponseWriter, r *http.Request, userID int64, reason string) int64 {
	n := g.sessions.RevokeAll(r.Context(), userID, reason)
	if cu, ok := CurrentUserFrom(r.Context()); ok && cu.Authenticated && cu.UserID == userID {
		g.LogoutUser(w, r)
	}
	return n
}

// OnPasswordChanged revokes userID's sessions after a password change.
func (g *Gate) OnPasswordChanged(w http.ResponseWriter, r *http.Request, userID int64) int64 {
	return g.RevokeAllOnCriticalEvent(w, r, userID, ReasonPasswordChanged)
}

// OnAccountCompromised revokes userID's sessions after a compromise alert.
func (g *Gate) OnAccountCompromised(w http.ResponseWriter, r *http.Request, userID int64) int64 {
	return g.RevokeAllOnCriticalEvent(w, r, userID, ReasonAccountCompromised)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}
