package hashing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrMissingSecret indicates the hasher was constructed without a secret key.
var ErrMissingSecret = errors.New("hashing: secret key required")

// Hasher derives opaque author tokens from plaintext identities using
// HMAC-SHA256 under a process-wide secret key. The key is fixed for the
// process lifetime; rotating it orphans every previously stored token.
type Hasher struct {
	secret []byte
}

// New constructs a Hasher. An empty or blank secret is a configuration
// error and must abort startup.
func New(secret string) (*Hasher, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	return &Hasher{secret: []byte(secret)}, nil
}

// Hash returns the deterministic token for the given identity, encoded as
// standard base64. Empty input passes through unchanged so absent
// identities never produce a token.
func (h *Hasher) Hash(plaintext string) string {
	if plaintext == "" {
		return ""
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(plaintext))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
