// Package handler exposes administrative session revocation over HTTP. Routes are mounted behind the admin guard.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// DefaultRevokeReason is recorded when an administrator revokes without giving a reason.
const DefaultRevokeReason = "Revoked by administrator"

// CriticalEvents revokes every session of a user and logs the caller out when it is that user.
type CriticalEvents interface {
	RevokeAllOnCriticalEvent(w http.ResponseWriter, r *http.Request, userID int64, reason string) int64
	OnAccountCompromised(w http.ResponseWriter, r *http.Request, userID int64) int64
}

// Handler serves session administration.
type Handler struct {
	events CriticalEvents
}

// NewHandler returns a session admin handler.
func NewHandler(events CriticalEvents) *Handler {
	return &Handler{events: events}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

// POST /admin/users/{id}/revoke
func (h *Handler) RevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var in struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = DefaultRevokeReason
	}
	n := h.events.RevokeAllOnCriticalEvent(w, r, userID, reason)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user_id": userID, "revoked": n})
}

// POST /admin/users/{id}/compromised
func (h *Handler) MarkCompromised(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	n := h.events.OnAccountCompromised(w, r, userID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user_id": userID, "revoked": n})
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeErr(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}
