//go:build !integration

package security

import (
	"errors"
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestGCMRoundTrip(t *testing.T) {
	c, err := NewGCMCipher(testKey)
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := c.Seal("secret-api-key", "device-1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(sealed, "gcm1:") || strings.Contains(sealed, "secret-api-key") {
		t.Fatalf("unexpected sealed form %q", sealed)
	}
	got, err := c.Open(sealed, "device-1")
	if err != nil || got != "secret-api-key" {
		t.Fatalf("open: %q %v", got, err)
	}
}

func TestGCMWrongScope(t *testing.T) {
	c, _ := NewGCMCipher(testKey)
	sealed, _ := c.Seal("secret", "device-1")
	if _, err := c.Open(sealed, "device-2"); !errors.Is(err, ErrTampered) {
		t.Errorf("expected ErrTampered, got %v", err)
	}
	if _, err := c.Open("plain-value", "device-1"); !errors.Is(err, ErrTampered) {
		t.Errorf("expected ErrTampered for unsealed input, got %v", err)
	}
}

func TestNewCipher(t *testing.T) {
	c, err := NewCipher("")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(PlainCipher); !ok {
		t.Errorf("expected PlainCipher, got %T", c)
	}
	if _, err := NewCipher("short"); err == nil {
		t.Error("expected key length error")
	}
}
