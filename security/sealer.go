// Package security encrypts third-party credentials before they are stored.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	apperrors "github.com/leeforge/moneykeeper/errors"
	"golang.org/x/crypto/hkdf"
)

const keyInfo = "moneykeeper credentials v1"

var ErrMalformed = errors.New("sealed value is malformed")

// Sealer encrypts short strings with AES-256-GCM. The key is derived from the
// service secret key, so rotating SECRET_KEY makes earlier values unreadable.
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(secretKey string) (*Sealer, error) {
	if secretKey == "" {
		return nil, apperrors.NewRequired("secret key")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secretKey), nil, []byte(keyInfo)), key); err != nil {
		return nil, apperrors.NewInternal("failed to derive key").WithInnerError(err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperrors.NewInternal("failed to create cipher").WithInnerError(err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.NewInternal("failed to create cipher").WithInnerError(err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns base64(nonce || ciphertext).
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", apperrors.NewInternal("failed to generate nonce").WithInnerError(err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < s.aead.NonceSize() {
		return "", ErrMalformed
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrMalformed
	}
	return string(plaintext), nil
}

// Mask keeps the last four characters of a credential for logs.
func Mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
