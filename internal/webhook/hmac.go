package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Sign computes the signature the platform sends for a request body:
// HMAC-SHA256 over the exact raw bytes, hex encoded, with the algorithm
// tag prefix. Senders and tests build header values with it.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the body under the shared
// secret. The comparison covers the full formatted signature string and
// is constant time (crypto/subtle) to avoid timing side-channels. An
// empty signature is always rejected.
//
// Verification must run over the raw request bytes, never a re-serialized
// form: re-encoding can change byte layout and break the digest.
func Verify(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(body, secret)
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}
