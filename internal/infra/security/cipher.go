// File: internal/infra/security/cipher.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const sealedPrefix = "gcm1:"

var ErrTampered = errors.New("sealed value failed authentication")

// SecretCipher mirrors adapter.SecretCipher. Scope is bound as additional data,
// so a value sealed for one device cannot be opened for another.
type SecretCipher interface {
	Seal(plaintext, scope string) (string, error)
	Open(sealed, scope string) (string, error)
}

// GCMCipher seals with AES-GCM. Format: "gcm1:" + base64(nonce || ciphertext).
type GCMCipher struct {
	gcm cipher.AEAD
}

// NewGCMCipher accepts a 16, 24 or 32 byte key.
func NewGCMCipher(key string) (*GCMCipher, error) {
	k := []byte(key)
	n := len(k)
	if n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", n)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &GCMCipher{gcm: gcm}, nil
}

func (c *GCMCipher) Seal(plaintext, scope string) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := c.gcm.Seal(nonce, nonce, []byte(plaintext), []byte(scope))
	return sealedPrefix + base64.StdEncoding.EncodeToString(ct), nil
}

func (c *GCMCipher) Open(sealed, scope string) (string, error) {
	raw, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return "", fmt.Errorf("%w: missing prefix", ErrTampered)
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	ns := c.gcm.NonceSize()
	if len(data) < ns {
		return "", fmt.Errorf("%w: ciphertext too short", ErrTampered)
	}
	pt, err := c.gcm.Open(nil, data[:ns], data[ns:], []byte(scope))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTampered, err)
	}
	return string(pt), nil
}

// PlainCipher stores values unchanged. Used when no encryption key is configured.
type PlainCipher struct{}

func (PlainCipher) Seal(plaintext, _ string) (string, error) { return plaintext, nil }
func (PlainCipher) Open(sealed, _ string) (string, error)    { return sealed, nil }

// NewCipher picks GCMCipher when key is set, PlainCipher otherwise.
func NewCipher(key string) (SecretCipher, error) {
	if key == "" {
		return PlainCipher{}, nil
	}
	return NewGCMCipher(key)
}
