package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	hashScheme = "pbkdf2"

	// pbkdf2Iterations is also the verification ceiling: a stored value
	// demanding more work than we ever produce is treated as forged
	// rather than honored.
	pbkdf2Iterations = 100_000

	saltLength = 16
	keyLength  = 32
)

// HashPassword derives a salted PBKDF2-HMAC-SHA-256 key and encodes it as
// pbkdf2$<iterations>$<base64url-salt>$<base64url-key>. Plaintext is never
// stored or logged; hashing is one-way by construction.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", wrapInternal(err, "failed to read salt entropy")
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keyLength, sha256.New)

	enc := base64.RawURLEncoding
	return strings.Join([]string{
		hashScheme,
		strconv.Itoa(pbkdf2Iterations),
		enc.EncodeToString(salt),
		enc.EncodeToString(key),
	}, "$"), nil
}

// ComparePasswordAndHash recomputes the stored derivation and compares in
// constant time. Returns ErrInvalidCredentials on mismatch and
// ErrHashFormatInvalid when the stored value itself is unusable.
func ComparePasswordAndHash(password, stored string) error {
	params, err := parseStoredHash(stored)
	if err != nil {
		return err
	}

	got := pbkdf2.Key([]byte(password), params.salt, params.iterations, len(params.key), sha256.New)
	if subtle.ConstantTimeCompare(params.key, got) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// RandomPassword generates a throwaway password for admin-created
// sub-accounts when none was supplied. The alphabet omits easily confused
// glyphs (0/O, 1/l/I).
func RandomPassword(length int) string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789!@#$%"
	if length <= 0 {
		length = 12
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process has bigger problems;
		// retry rather than weaken the source.
		return RandomPassword(length)
	}

	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out)
}

type hashParams struct {
	iterations int
	salt       []byte
	key        []byte
}

func parseStoredHash(stored string) (*hashParams, error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 4 {
		return nil, ErrHashFormatInvalid
	}
	if parts[0] != hashScheme {
		return nil, ErrHashFormatInvalid
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 || iterations > pbkdf2Iterations {
		return nil, ErrHashFormatInvalid
	}

	enc := base64.RawURLEncoding
	salt, err := enc.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return nil, ErrHashFormatInvalid
	}

	key, err := enc.DecodeString(parts[3])
	if err != nil || len(key) == 0 {
		return nil, ErrHashFormatInvalid
	}

	return &hashParams{iterations: iterations, salt: salt, key: key}, nil
}
