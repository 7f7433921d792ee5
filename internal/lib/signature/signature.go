// Package signature validates Meta webhook signatures (X-Hub-Signature-256).
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	Header = "X-Hub-Signature-256"
	prefix = "sha256="
)

// Verify reports whether header carries the hex HMAC-SHA256 of body keyed by secret.
// The body must be the exact bytes received on the wire.
func Verify(body []byte, header string, secret []byte) bool {
	if header == "" || !strings.HasPrefix(header, prefix) {
		return false
	}

	got, err := hex.DecodeString(header[len(prefix):])
	if err != nil || len(got) != sha256.Size {
		return false
	}

	return hmac.Equal(got, Sum(body, secret))
}

// Sum returns the raw HMAC-SHA256 of body.
func Sum(body []byte, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

// Sign formats the header value for body, as a webhook sender would.
func Sign(body []byte, secret []byte) string {
	return prefix + hex.EncodeToString(Sum(body, secret))
}
