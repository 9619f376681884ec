// Package auth provides bearer-token authentication for the admin API.
// Client identity on the sync endpoint is not handled here; it arrives as an
// already-authenticated principal from the fronting proxy (see pkg/identity).
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

// Authenticator validates admin API credentials
type Authenticator interface {
	// Authenticate checks a presented bearer token
	Authenticate(token string) bool
}

// TokenAuthenticator implements Authenticator with a static shared token
type TokenAuthenticator struct {
	token string
}

// NewTokenAuthenticator creates an authenticator for a shared admin token.
// An empty token disables authentication (local development).
func NewTokenAuthenticator(token string) *TokenAuthenticator {
	return &TokenAuthenticator{token: token}
}

// Authenticate checks a presented bearer token in constant time
func (a *TokenAuthenticator) Authenticate(token string) bool {
	if a.token == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(a.token), []byte(token)) == 1
}

// GenerateToken generates a secure random token
func GenerateToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	data := fmt.Sprintf("%x-%d", b, time.Now().UnixNano())
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
