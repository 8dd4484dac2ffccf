package auth

import (
	"net/http"
	"strings"
)

// Cookie and header names.
const (
	SessionCookieName = "session_id"
	RefreshCookieName = "refresh_token"

	HeaderRefreshToken      = "X-Refresh-Token"
	HeaderRefreshMaxAge     = "X-Refresh-Max-Age"
	HeaderClearRefreshToken = "X-Clear-Refresh-Token"
)

const (
	fallbackIP        = "127.0.0.1"
	fallbackUserAgent = "Unknown"
)

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, else 127.0.0.1.
// Both headers are client-controlled unless a trusted proxy overwrites them.
func ClientIP(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); v != "" {
		if i := strings.Index(v, ","); i >= 0 {
			v = strings.TrimSpace(v[:i])
		}
		if v != "" {
			return v
		}
	}
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		return v
	}
	return fallbackIP
}

// UserAgent returns the User-Agent header or "Unknown".
func UserAgent(r *http.Request) string {
	if ua := r.UserAgent(); ua != "" {
		return ua
	}
	return fallbackUserAgent
}

// SessionCookie returns the session_id cookie value or "".
func SessionCookie(r *http.Request) string {
	return cookieValue(r, SessionCookieName)
}

// RefreshCookie returns the refresh_token cookie value or "".
func RefreshCookie(r *http.Request) string {
	return cookieValue(r, RefreshCookieName)
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
