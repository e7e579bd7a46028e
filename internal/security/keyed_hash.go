package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// KeyedHash returns HMAC-SHA256(secret, message) as lowercase hex. Used to store
// OTP codes and session tokens in a verifiable but non-recoverable form.
func KeyedHash(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// ConstantTimeEqualHex compares two hex digests without leaking the position of the
// first differing byte. Malformed hex or a length mismatch compares unequal.
func ConstantTimeEqualHex(a, b string) bool {
	ab, err := hex.DecodeString(a)
	if err != nil {
		return false
	}
	bb, err := hex.DecodeString(b)
	if err != nil {
		return false
	}
	if len(ab) != len(bb) {
		return false
	}
	return subtle.ConstantTimeCompare(ab, bb) == 1
}
