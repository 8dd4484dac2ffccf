package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidSalt is returned when a salt is empty or not valid hex.
var ErrInvalidSalt = errors.New("invalid salt")

// SessionHasher turns a raw session id or refresh token into the value stored in the database.
// Parameters are lighter than the login credential hash because this runs on every request.
type SessionHasher struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// NewSessionHasher returns argon2id with time 1, 32 MiB memory, parallelism 1 and a 32-byte digest.
func NewSessionHasher() *SessionHasher {
	return &SessionHasher{Time: 1, Memory: 32 * 1024, Threads: 1, KeyLen: 32}
}

// HashWithSalt decodes saltHex and returns the hex argon2id digest of data.
func (h *SessionHasher) HashWithSalt(data, saltHex string) (string, error) {
	if saltHex == "" {
		return "", ErrInvalidSalt
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSalt, err)
	}
	sum := argon2.IDKey([]byte(data), salt, h.Time, h.Memory, h.Threads, h.KeyLen)
	return hex.EncodeToString(sum), nil
}

// HashEqual compares two stored digests in constant time.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Fingerprint returns a short one-way tag for a bearer credential so logs and audit rows can
// correlate events without holding the credential itself. Empty input yields "".
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:8])
}
