// Package handler exposes the session audit log over HTTP. Routes are mounted behind the admin guard.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"session-gate/internal/audit/domain"
	auditrepo "session-gate/internal/audit/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Handler serves audit log queries.
type Handler struct {
	repo   auditrepo.Repository
	logger *zap.Logger
}

// NewHandler returns an audit handler backed by repo.
func NewHandler(repo auditrepo.Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

// GET /admin/audit?user_id=&action=&limit=&offset=
func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeErr(w, http.StatusServiceUnavailable, "audit log unavailable")
		return
	}
	q := r.URL.Query()
	limit, ok := parsePaging(q.Get("limit"), defaultPageSize)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, ok := parsePaging(q.Get("offset"), 0)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid offset")
		return
	}

	var (
		logs []*domain.AuditLog
		err  error
	)
	switch {
	case q.Get("user_id") != "":
		userID, perr := strconv.ParseInt(q.Get("user_id"), 10, 64)
		if perr != nil {
			writeErr(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		logs, err = h.repo.ListByUser(r.Context(), userID, limit, offset)
	case q.Get("action") != "":
		logs, err = h.repo.ListByAction(r.Context(), q.Get("action"), limit, offset)
	default:
		logs, err = h.repo.ListRecent(r.Context(), limit, offset)
	}
	if err != nil {
		h.logger.Error("audit: list failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "could not list audit logs")
		return
	}
	if logs == nil {
		logs = []*domain.AuditLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func parsePaging(raw string, fallback int32) (int32, bool) {
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n < 0 {
		return 0, false
	}
	return int32(n), true
}
