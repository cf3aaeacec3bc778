package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// tokenBytes is the entropy of an emailed token: 256 bits.
const tokenBytes = 32

// generateToken returns the raw token that goes into the email link and the
// hash that is stored. The raw value never touches the database.
func generateToken() (rawToken string, tokenHash string, err error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	rawToken = hex.EncodeToString(b)
	return rawToken, HashToken(rawToken), nil
}

func HashToken(rawToken string) string {
	h := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(h[:])
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
