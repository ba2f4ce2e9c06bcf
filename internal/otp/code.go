// Package otp generates and compares numeric one-time codes.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

const codeDigits = 6

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a uniformly random 6-digit numeric code ("000000" to "999999").
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// HashCode returns the hex SHA-256 digest of code.
func HashCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// CodeEqual compares the digest of provided with storedHash in constant time.
// Empty codes never match.
func CodeEqual(provided, storedHash string) bool {
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashCode(provided)), []byte(storedHash)) == 1
}
