package domain

import "time"

// EmptyData is the payload of a new session and of one whose stored payload cannot be decrypted.
const EmptyData = "{}"

// Session is one authenticated browsing context. SessionID and RefreshToken are bearer credentials:
// they live only in memory and in the response of the call that minted them.
type Session struct {
	SessionID     string
	SessionIDHash string
	SessionSalt   string
	UserID        int64
	Data          string

	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time

	IPAddress      string
	UserAgent      string
	CreatedIP      string
	LastActivityIP string

	RefreshToken     string
	RefreshTokenHash string
	RefreshExpiresAt time.Time

	Exists  bool
	IsValid bool
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// RefreshExpired reports whether the refresh token is past its expiry at now.
func (s *Session) RefreshExpired(now time.Time) bool {
	return now.After(s.RefreshExpiresAt)
}

// BoundTo reports whether ip and userAgent match the pair recorded when the session was created.
func (s *Session) BoundTo(ip, userAgent string) bool {
	return s.IPAddress == ip && s.UserAgent == userAgent
}

// Age is the time since creation.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}
