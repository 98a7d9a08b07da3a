package random

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// DefaultSecretSize is the number of random bytes behind a refresh token.
const DefaultSecretSize = 64

// String returns size bytes from crypto/rand encoded as unpadded base64url.
func String(size int) (string, error) {
	const op = "random.String"

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Fingerprint is the hex SHA-256 of value. Refresh tokens are stored and
// looked up by fingerprint so the database never holds a usable value.
func Fingerprint(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
