package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltBytes       = 16
	proofIterations = 210000
	proofKeyBytes   = 64
)

// GenerateSalt returns a fresh random salt, hex encoded.
func GenerateSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ComputeProof derives the password proof sent over the wire and stored at
// rest. The server never sees or keeps the plaintext password beyond this
// derivation.
func ComputeProof(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), proofIterations, proofKeyBytes, sha512.New)
	return hex.EncodeToString(key)
}

// VerifyProof compares a submitted proof against the stored one in constant
// time.
func VerifyProof(stored, submitted string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}

// DeriveFakeSalt produces a stable salt for an unknown username so that a
// salt request cannot be used to probe which accounts exist. The secret is
// generated per process start.
func DeriveFakeSalt(secret []byte, username string) string {
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(username))
	return hex.EncodeToString(mac.Sum(nil)[:saltBytes])
}
