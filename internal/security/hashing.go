package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrMismatchedHashAndPassword is returned by Compare when the password does not match.
	ErrMismatchedHashAndPassword = errors.New("security: password does not match hash")
	// ErrInvalidHash is returned by Compare when the stored value is not an argon2id PHC string.
	ErrInvalidHash = errors.New("security: invalid argon2id hash")
	// ErrIncompatibleVersion is returned for hashes produced by another argon2 version.
	ErrIncompatibleVersion = errors.New("security: incompatible argon2 version")
)

const (
	saltLen = 16
	keyLen  = 32

	minMemoryKiB = 8 * 1024
)

// Hasher hashes and verifies passwords using Argon2id. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// NewHasher returns a Hasher with the given cost. Zero values fall back to
// 64 MiB, 3 iterations and 2 lanes; memory is clamped to at least 8 MiB.
func NewHasher(memoryKiB, iterations uint32, parallelism uint8) *Hasher {
	if memoryKiB == 0 {
		memoryKiB = 64 * 1024
	}
	if memoryKiB < minMemoryKiB {
		memoryKiB = minMemoryKiB
	}
	if iterations == 0 {
		iterations = 3
	}
	if parallelism == 0 {
		parallelism = 2
	}
	return &Hasher{MemoryKiB: memoryKiB, Iterations: iterations, Parallelism: parallelism}
}

// Hash produces an encoded argon2id hash of password with a fresh random salt:
// $argon2id$v=19$m=<KiB>,t=<iterations>,p=<lanes>$<salt>$<key>.
func (h *Hasher) Hash(password []byte) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey(password, salt, h.Iterations, h.MemoryKiB, h.Parallelism, keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.MemoryKiB, h.Iterations, h.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Compare verifies password against the stored hash using the parameters encoded in
// the hash itself. Returns nil on match, ErrMismatchedHashAndPassword on mismatch.
func (h *Hasher) Compare(encoded string, password []byte) error {
	p, salt, key, err := decodeHash(encoded)
	if err != nil {
		return err
	}
	other := argon2.IDKey(password, salt, p.iterations, p.memoryKiB, p.parallelism, uint32(len(key)))
	if subtle.ConstantTimeCompare(key, other) != 1 {
		return ErrMismatchedHashAndPassword
	}
	return nil
}

type hashParams struct {
	memoryKiB   uint32
	iterations  uint32
	parallelism uint8
}

func decodeHash(encoded string) (hashParams, []byte, []byte, error) {
	var p hashParams
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return p, nil, nil, ErrIncompatibleVersion
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memoryKiB, &p.iterations, &p.parallelism); err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	if p.memoryKiB == 0 || p.iterations == 0 || p.parallelism == 0 {
		return p, nil, nil, ErrInvalidHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, ErrInvalidHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, ErrInvalidHash
	}
	return p, salt, key, nil
}
