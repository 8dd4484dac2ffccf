package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

// Sizes in bytes of the random material minted for every session.
const (
	SessionIDBytes    = 32
	RefreshTokenBytes = 32
	SessionSaltBytes  = 16
)

// saltAlphabet is the charset GenerateSalt samples from.
const saltAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var (
	// ErrEntropy is returned when the OS entropy source cannot supply bytes.
	ErrEntropy = errors.New("entropy source unavailable")
	// ErrInvalidLength is returned for a non-positive size request.
	ErrInvalidLength = errors.New("length must be positive")
)

// GenerateRandomBytes reads n bytes from crypto/rand and returns them hex-encoded (2n characters).
func GenerateRandomBytes(n int) (string, error) {
	if n <= 0 {
		return "", ErrInvalidLength
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateSalt returns n characters sampled uniformly from saltAlphabet, for callers that need a
// printable salt. It is not the hex salt SessionHasher.HashWithSalt decodes; session hashing takes
// its salts from GenerateSessionSalt.
func GenerateSalt(n int) (string, error) {
	if n <= 0 {
		return "", ErrInvalidLength
	}
	max := big.NewInt(int64(len(saltAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrEntropy, err)
		}
		out[i] = saltAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// GenerateSessionID mints a new bearer session id.
func GenerateSessionID() (string, error) {
	return GenerateRandomBytes(SessionIDBytes)
}

// GenerateRefreshToken mints a new refresh token.
func GenerateRefreshToken() (string, error) {
	return GenerateRandomBytes(RefreshTokenBytes)
}

// GenerateSessionSalt returns a hex salt in the form HashWithSalt expects.
func GenerateSessionSalt() (string, error) {
	return GenerateRandomBytes(SessionSaltBytes)
}
