// Package handler serves the login, logout, refresh and account endpoints on top of the auth gate.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"session-gate/internal/auth"
	"session-gate/internal/security"
	"session-gate/internal/session"
	"session-gate/internal/user/domain"
	"session-gate/internal/user/repository"
)

// MinPasswordLength is the shortest password accepted by ChangePassword.
const MinPasswordLength = 8

const maxBodyBytes = 64 << 10

// Gate is the subset of *auth.Gate the handlers drive.
type Gate interface {
	LoginUser(w http.ResponseWriter, r *http.Request, u *domain.User) error
	LogoutUser(w http.ResponseWriter, r *http.Request)
	RefreshSessionToken(w http.ResponseWriter, r *http.Request) bool
	UpdateSessionData(r *http.Request, data string) error
	RequireAuth(w http.ResponseWriter, r *http.Request) bool
	RequireReauthentication(r *http.Request, password string) bool
	IsLoginRateLimited(ctx context.Context, ip string) bool
	RecordFailedLogin(ctx context.Context, ip string)
	OnPasswordChanged(w http.ResponseWriter, r *http.Request, userID int64) int64
}

// Handler serves /auth.
type Handler struct {
	gate   Gate
	users  repository.Repository
	hasher *security.Hasher
	logger *zap.Logger
}

// NewHandler returns an auth handler. logger may be nil.
func NewHandler(gate Gate, users repository.Repository, hasher *security.Hasher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{gate: gate, users: users, hasher: hasher, logger: logger}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip := auth.ClientIP(r)
	if h.gate.IsLoginRateLimited(ctx, ip) {
		writeErr(w, http.StatusTooManyRequests, "Too many failed attempts")
		return
	}
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		writeErr(w, http.StatusBadRequest, "username and password required")
		return
	}

	u, err := h.users.GetByUsername(ctx, in.Username)
	if err != nil {
		h.logger.Error("auth: user lookup failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	if u == nil || !u.Active() || !h.hasher.Verify(u.PasswordHash, in.Password) {
		h.gate.RecordFailedLogin(ctx, ip)
		writeErr(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if h.hasher.NeedsRehash(u.PasswordHash) {
		h.rehash(ctx, u, in.Password)
	}

	if err := h.gate.LoginUser(w, r, u); err != nil {
		h.writeSessionErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u.Fields()})
}

func (h *Handler) rehash(ctx context.Context, u *domain.User, password string) {
	hash, err := h.hasher.Hash(password)
	if err == nil {
		err = h.users.UpdatePasswordHash(ctx, u.ID, hash)
	}
	if err != nil {
		h.logger.Warn("auth: password rehash failed", zap.Int64("user_id", u.ID), zap.Error(err))
		return
	}
	u.PasswordHash = hash
}

func (h *Handler) writeSessionErr(w http.ResponseWriter, err error) {
	switch session.KindOf(err) {
	case session.KindThrottled:
		writeErr(w, http.StatusTooManyRequests, "Too many failed attempts")
	case session.KindInvalid:
		writeErr(w, http.StatusUnauthorized, "Unauthorized")
	default:
		h.logger.Error("auth: session error", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

// POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.gate.LogoutUser(w, r)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// POST /auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !h.gate.RefreshSessionToken(w, r) {
		writeErr(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	resp := map[string]any{"ok": true}
	if cu, ok := auth.CurrentUserFrom(r.Context()); ok && cu.Authenticated {
		resp["user"] = cu.Fields
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	if !h.gate.RequireAuth(w, r) {
		return
	}
	cu, _ := auth.CurrentUserFrom(r.Context())
	resp := map[string]any{"user": cu.Fields}
	if s := cu.Session; s != nil {
		info := map[string]any{
			"created_at":    s.CreatedAt.Format(time.RFC3339),
			"expires_at":    s.ExpiresAt.Format(time.RFC3339),
			"last_activity": s.LastActivity.Format(time.RFC3339),
		}
		if json.Valid([]byte(s.Data)) {
			info["data"] = json.RawMessage(s.Data)
		}
		resp["session"] = info
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /auth/reauthenticate
func (h *Handler) Reauthenticate(w http.ResponseWriter, r *http.Request) {
	if !h.gate.RequireAuth(w, r) {
		return
	}
	var in struct {
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}
	if !h.gate.RequireReauthentication(r, in.Password) {
		writeErr(w, http.StatusUnauthorized, "Reauthentication failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// POST /auth/password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if !h.gate.RequireAuth(w, r) {
		return
	}
	var in struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decode(w, r, &in) {
		return
	}
	if len(in.NewPassword) < MinPasswordLength {
		writeErr(w, http.StatusBadRequest, "new password too short")
		return
	}
	if !h.gate.RequireReauthentication(r, in.CurrentPassword) {
		writeErr(w, http.StatusUnauthorized, "Reauthentication failed")
		return
	}
	cu, _ := auth.CurrentUserFrom(r.Context())
	userID := cu.UserID

	hash, err := h.hasher.Hash(in.NewPassword)
	if err != nil {
		h.logger.Error("auth: hash password failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.users.UpdatePasswordHash(r.Context(), userID, hash); err != nil {
		h.logger.Error("auth: update password failed", zap.Int64("user_id", userID), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	n := h.gate.OnPasswordChanged(w, r, userID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "revoked": n})
}

// PUT /auth/session/data
func (h *Handler) UpdateSessionData(w http.ResponseWriter, r *http.Request) {
	if !h.gate.RequireAuth(w, r) {
		return
	}
	var data map[string]any
	if !decode(w, r, &data) {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.gate.UpdateSessionData(r, string(b)); err != nil {
		if errors.Is(err, auth.ErrNoCurrentUser) {
			writeErr(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		h.writeSessionErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
