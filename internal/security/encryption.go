package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// PayloadKeySize is the AES-256 key length in bytes.
const PayloadKeySize = 32

// ErrCiphertext is returned by Decrypt for input that is not a well-formed ciphertext under the current key.
var ErrCiphertext = errors.New("malformed ciphertext")

// PayloadCipher encrypts session payloads at rest with AES-256-CBC and PKCS#7 padding.
// Output is hex(iv || ciphertext) with a fresh random IV per message.
type PayloadCipher struct {
	block cipher.Block
}

// NewPayloadCipher returns a cipher for the given 32-byte key.
func NewPayloadCipher(key []byte) (*PayloadCipher, error) {
	if len(key) != PayloadKeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKey, PayloadKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &PayloadCipher{block: block}, nil
}

// Encrypt returns the hex ciphertext of plaintext. Any byte string is accepted, including "" and NUL bytes.
func (c *PayloadCipher) Encrypt(plaintext string) (string, error) {
	bs := c.block.BlockSize()
	padded := pkcs7Pad([]byte(plaintext), bs)
	out := make([]byte, bs+len(padded))
	iv := out[:bs]
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out[bs:], padded)
	return hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Callers treat any error as an empty payload.
func (c *PayloadCipher) Decrypt(ciphertextHex string) (string, error) {
	raw, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	bs := c.block.BlockSize()
	if len(raw) < 2*bs || len(raw)%bs != 0 {
		return "", ErrCiphertext
	}
	iv, body := raw[:bs], raw[bs:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, body)
	unpadded, err := pkcs7Unpad(plain, bs)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, ErrCiphertext
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, ErrCiphertext
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrCiphertext
		}
	}
	return b[:len(b)-n], nil
}
