// Package util provides the content fingerprint used as a dedup key.
package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns the hex-encoded SHA-256 digest of text. It is
// deterministic: the same text always produces the same fingerprint, so it
// can key the duplicate guard in the store. Callers must truncate before
// fingerprinting so the digest covers the exact bytes that are sent.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// TruncatePost trims text to at most limit runes. When truncation happens the
// last rune is replaced with an ellipsis so readers can tell the post was cut.
func TruncatePost(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return strings.TrimSpace(text)
	}
	if limit <= 0 {
		return ""
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
