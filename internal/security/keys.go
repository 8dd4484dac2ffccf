package security

import (
	"encoding/hex"
	"errors"
	"os"
	"strings"
)

// ErrInvalidKey is returned when key material is missing or has the wrong shape.
var ErrInvalidKey = errors.New("invalid key")

// LoadKey resolves SESSION_ENCRYPTION_KEY. s is either 64 hex characters or a path to a file
// holding them (e.g. a mounted secret). Rotating the key means replacing that secret; payloads
// written under the old key then decrypt as empty.
func LoadKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if key, err := decodeKey(s); err == nil {
		return key, nil
	}
	content, err := os.ReadFile(s)
	if err != nil {
		return nil, err
	}
	return decodeKey(strings.TrimSpace(string(content)))
}

func decodeKey(s string) ([]byte, error) {
	if len(s) != hex.EncodedLen(PayloadKeySize) {
		return nil, ErrInvalidKey
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidKey
	}
	return key, nil
}
