package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeText canonicalizes input text for fingerprinting: surrounding
// whitespace is trimmed and CRLF becomes LF. Nothing stronger, since
// more aggressive normalization would silently merge distinct inputs.
func NormalizeText(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
}

// Fingerprint derives the cache key for a (text, embedder type, config)
// triple: a SHA-256 over the normalized text and the embedder identity.
// Identical triples always produce identical keys; the components are
// NUL-separated so no two distinct triples concatenate to the same
// preimage.
func Fingerprint(text, embedderType, configJSON string) string {
	h := sha256.New()
	h.Write([]byte(NormalizeText(text)))
	h.Write([]byte{0})
	h.Write([]byte(embedderType))
	h.Write([]byte{0})
	h.Write([]byte(configJSON))
	return hex.EncodeToString(h.Sum(nil))
}
