package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/oauth2"
)

const (
	// VerifierLength is the length of generated code verifiers.
	VerifierLength = 64

	minVerifierLength = 43
	maxVerifierLength = 128
	verifierAlphabet  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._~"
)

var randReader io.Reader = rand.Reader

// PKCE is a code verifier and its derived S256 challenge.
type PKCE struct {
	Verifier  string
	Challenge string
}

// GeneratePKCE returns a fresh verifier/challenge pair.
func GeneratePKCE() (PKCE, error) {
	// base64 turns every 3 bytes into 4 characters
	b := make([]byte, VerifierLength/4*3)
	if _, err := io.ReadFull(randReader, b); err != nil {
		return PKCE{}, fmt.Errorf("failed to read random bytes: %w", err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(b)
	if !ValidVerifier(verifier) {
		return PKCE{}, fmt.Errorf("generated verifier %d chars long is invalid", len(verifier))
	}
	return PKCE{Verifier: verifier, Challenge: ChallengeFor(verifier)}, nil
}

// ChallengeFor returns base64url(sha256(verifier)) without padding.
func ChallengeFor(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// ValidVerifier reports whether v satisfies the RFC 7636 length and alphabet rules.
func ValidVerifier(v string) bool {
	if len(v) < minVerifierLength || len(v) > maxVerifierLength {
		return false
	}
	for _, r := range v {
		if !strings.ContainsRune(verifierAlphabet, r) {
			return false
		}
	}
	return true
}
