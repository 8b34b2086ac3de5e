package model

import (
	"strings"
	"unicode/utf8"

	"genmedia-studio/internal/domain"
)

// CredentialLength is the exact length of a remote API key.
const CredentialLength = 32

// ValidateCredential rejects malformed API keys before any network call.
func ValidateCredential(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.Validationf("api key is required")
	}
	if n := utf8.RuneCountInString(key); n != CredentialLength {
		return domain.Validationf("api key must be %d characters, got %d", CredentialLength, n)
	}
	return nil
}
