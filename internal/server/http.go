// Package server assembles the HTTP API and the gRPC health server.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	audithandler "session-gate/internal/audit/handler"
	"session-gate/internal/auth"
	authhandler "session-gate/internal/auth/handler"
	sessionhandler "session-gate/internal/session/handler"
)

// HeaderRequestID carries the request id back to the client.
const HeaderRequestID = "X-Request-ID"

type contextKey struct{ name string }

var requestIDKey = contextKey{"request_id"}

// RequestIDFrom returns the id assigned by RequestID.
func RequestIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// Deps holds the HTTP handlers. Nil handlers leave their routes unmounted, except Gate which is required.
type Deps struct {
	Gate     *auth.Gate
	Auth     *authhandler.Handler
	Sessions *sessionhandler.Handler
	Audit    *audithandler.Handler
	Health   http.Handler
	Logger   *zap.Logger
}

// NewRouter builds the chi router. Every /auth and /admin request passes through the gate;
// /admin additionally requires the admin policy.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	if d.Health != nil {
		r.Method(http.MethodGet, "/healthz", d.Health)
	}

	r.Group(func(r chi.Router) {
		r.Use(d.Gate.Middleware)

		if d.Auth != nil {
			r.Route("/auth", func(r chi.Router) {
				r.Post("/login", d.Auth.Login)
				r.Post("/logout", d.Auth.Logout)
				r.Post("/refresh", d.Auth.Refresh)
				r.Get("/me", d.Auth.Me)
				r.Post("/reauthenticate", d.Auth.Reauthenticate)
				r.Post("/password", d.Auth.ChangePassword)
				r.Put("/session/data", d.Auth.UpdateSessionData)
			})
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminOnly(d.Gate))
			if d.Audit != nil {
				r.Get("/audit", d.Audit.ListAuditLogs)
			}
			if d.Sessions != nil {
				r.Post("/users/{id}/revoke", d.Sessions.RevokeUserSessions)
				r.Post("/users/{id}/compromised", d.Sessions.MarkCompromised)
			}
		})
	})
	return r
}

// AdminOnly rejects requests the gate does not admit as admin.
func AdminOnly(g *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !g.RequireAdmin(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID assigns each request a uuid, echoed in X-Request-ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// RequestLogger logs one line per request. Cookies and bodies are never logged.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("http request",
				zap.String("request_id", RequestIDFrom(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("client_ip", auth.ClientIP(r)),
			)
		})
	}
}
