package admin

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinSecretLength is the shortest secret the directory accepts
const MinSecretLength = 8

// ErrMismatchedSecret is returned when a secret does not match its hash
var ErrMismatchedSecret = errors.New("secret does not match")

// HashSecret will generate a bcrypt hash of secret with the given cost
func HashSecret(secret string, cost int) (string, error) {
	if len(secret) < MinSecretLength {
		return "", ErrInvalidSecret
	}

	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	h, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	return string(h), err
}

// CompareSecret will validate the given cleartext secret matches the hash
func CompareSecret(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedSecret
		}
		return err
	}
	return nil
}
