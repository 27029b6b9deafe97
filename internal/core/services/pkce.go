package services

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/oauth2"
)

// stateBytes is the entropy of an authorization state (256 bits)
const stateBytes = 32

// GenerateVerifier returns a PKCE code verifier: 32 random bytes encoded as
// 43 base64url characters without padding. It panics if the system entropy
// source fails.
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// ChallengeFor derives the S256 code challenge for verifier.
func ChallengeFor(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// GenerateState returns an unguessable state value, base64url without padding.
// It panics if the system entropy source fails.
func GenerateState() string {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
