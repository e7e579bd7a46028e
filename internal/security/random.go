package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// RandomToken returns n bytes from crypto/rand, base64url-encoded without padding.
// Used for raw session tokens (32 bytes), OTP row ids and object key names (16 bytes).
func RandomToken(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("security: token length must be positive")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
