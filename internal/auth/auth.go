// Package auth covers credentials for field-campaign participants: their
// deterministic provisioned passwords, bcrypt verification and opaque
// session tokens.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const passwordLength = 10

// passwordAlphabet matches the password generator participants received
// their credentials from. Order matters.
const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GeneratePassword derives a participant's password from the deployment's
// private key and their username. Deterministic so credentials can be
// re-issued from the username list alone.
func GeneratePassword(privateKey, username string) string {
	digest := sha256.Sum256([]byte(privateKey + username))
	password := make([]byte, passwordLength)
	for i := range password {
		password[i] = passwordAlphabet[int(digest[i])%len(passwordAlphabet)]
	}
	return string(password)
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) error {
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// NewSessionToken returns a fresh opaque bearer token.
func NewSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken derives the storage key for a token. Only hashes are persisted.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
