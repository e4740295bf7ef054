package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("comparing password: %w", err)
	}
	return true, nil
}

// dummyHash is compared against when the account does not exist so that
// unknown emails take as long as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("ecoconnect-timing"), bcrypt.DefaultCost)

// CheckMissingUser burns the time of a password comparison.
func CheckMissingUser(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
