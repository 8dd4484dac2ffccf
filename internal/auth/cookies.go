package auth

import (
	"net/http"
	"strconv"
	"time"
)

// CookieManager writes the session cookie and the response headers that accompany it.
// The session cookie is always HttpOnly and SameSite=Strict; Secure is configurable for local http only.
type CookieManager struct {
	Domain     string
	Secure     bool
	SessionTTL time.Duration
	RefreshTTL time.Duration
}

// NewCookieManager returns a CookieManager. Non-positive TTLs select 1h and 30d.
func NewCookieManager(domain string, secure bool, sessionTTL, refreshTTL time.Duration) *CookieManager {
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &CookieManager{Domain: domain, Secure: secure, SessionTTL: sessionTTL, RefreshTTL: refreshTTL}
}

// SetSession sets the session cookie and hands the refresh token to the client in a header.
func (c *CookieManager) SetSession(w http.ResponseWriter, sessionID, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(c.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	w.Header().Set(HeaderRefreshToken, refreshToken)
	w.Header().Set(HeaderRefreshMaxAge, strconv.Itoa(int(c.RefreshTTL.Seconds())))
}

// ClearSession expires the session cookie and tells the client to drop its refresh token.
func (c *CookieManager) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	w.Header().Set(HeaderClearRefreshToken, "true")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
}

// SetSecurityHeaders sets the hardening headers sent with every login response.
func SetSecurityHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-XSS-Protection", "1; mode=block")
}
