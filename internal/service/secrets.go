package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
)

// newSecretToken returns a high-entropy secret and the sha256 hex digest
// that is stored in its place. Only the digest ever touches the store.
func newSecretToken() (string, string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("read token: %w", err)
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)
	return raw, hashSecretToken(raw), nil
}

func hashSecretToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func tokenLink(baseURL, raw string) string {
	return baseURL + "?token=" + url.QueryEscape(raw)
}
