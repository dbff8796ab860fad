package admin

import (
	"crypto/rand"
	"encoding/hex"
)

// SessionTokenBytes is the entropy of a session token, 256 bits
const SessionTokenBytes = 32

// NewSessionToken returns a hex encoded token read from crypto/rand
func NewSessionToken() (string, error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
