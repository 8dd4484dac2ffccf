package session

import "errors"

var (
	// ErrRateLimited is returned by Create when the caller's IP has too many failed attempts.
	ErrRateLimited = errors.New("session: too many login attempts")
	// ErrInvalidSession is returned by Refresh when the session to refresh is absent.
	ErrInvalidSession = errors.New("session: invalid session")
	// ErrInvalidRefreshToken is returned by Refresh when the token does not match.
	ErrInvalidRefreshToken = errors.New("session: invalid refresh token")
	// ErrRefreshTokenExpired is returned by Refresh past the refresh expiry.
	ErrRefreshTokenExpired = errors.New("session: refresh token expired")
	// ErrCrypto wraps entropy, hashing and encryption failures. These abort the operation.
	ErrCrypto = errors.New("session: crypto failure")
)

// Kind classifies errors returned by the Manager.
type Kind int

const (
	KindNone Kind = iota
	KindThrottled
	KindInvalid
	KindCrypto
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindThrottled:
		return "throttled"
	case KindInvalid:
		return "invalid"
	case KindCrypto:
		return "crypto"
	default:
		return "internal"
	}
}

// KindOf returns the kind of err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrRateLimited):
		return KindThrottled
	case errors.Is(err, ErrInvalidSession), errors.Is(err, ErrInvalidRefreshToken), errors.Is(err, ErrRefreshTokenExpired):
		return KindInvalid
	case errors.Is(err, ErrCrypto):
		return KindCrypto
	default:
		return KindInternal
	}
}
