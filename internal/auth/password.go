package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. The encoded format carries the iteration count, so
// these can be raised without invalidating stored hashes.
const (
	pbkdf2Iterations = 160_000
	pbkdf2KeyLen     = 32 // SHA-256 output length
	pbkdf2SaltLen    = 16 // bytes, hex-encoded in the hash string
)

// HashPassword hashes a plaintext password with PBKDF2-SHA256 and
// returns it as pbkdf2_sha256$<iterations>$<salt>$<hex digest>.
func HashPassword(password string) (string, error) {
	saltBytes := make([]byte, pbkdf2SaltLen)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	salt := hex.EncodeToString(saltBytes)

	digest := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, pbkdf2KeyLen, sha256.New)

	return fmt.Sprintf("pbkdf2_sha256$%d$%s$%s",
		pbkdf2Iterations, salt, hex.EncodeToString(digest)), nil
}

// VerifyPassword checks a plaintext password against an encoded hash.
// Malformed hashes verify as false rather than erroring: stored hashes
// are trusted input, and a corrupt one should just fail the login.
func VerifyPassword(password, encoded string) bool {
	parts := strings.SplitN(encoded, "$", 4)
	if len(parts) != 4 || parts[0] != "pbkdf2_sha256" {
		return false
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}
	salt := parts[2]

	digest, err := hex.DecodeString(parts[3])
	if err != nil || len(digest) == 0 {
		return false
	}

	candidate := pbkdf2.Key([]byte(password), []byte(salt), iterations, len(digest), sha256.New)
	return subtle.ConstantTimeCompare(digest, candidate) == 1
}
