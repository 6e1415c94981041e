// Package pkce generates RFC 7636 code verifiers, challenges and the random
// state tokens that correlate an authorization attempt with its callback.
package pkce

import (
	"fmt"
	"io"

	"github.com/obot-platform/pagerduty-app/pkg/encryption"
	"github.com/obot-platform/pagerduty-app/pkg/types"
	"golang.org/x/oauth2"
)

const (
	// MethodS256 is the only challenge method this app sends.
	MethodS256 = "S256"

	// EntropyBytes is the number of random bytes behind each verifier and
	// state; 32 bytes encode to 43 base64url characters.
	EntropyBytes = 32

	MinVerifierLength = 43
	MaxVerifierLength = 128

	// Bounds for a state minted by the platform rather than by Generator.
	MinExternalStateLength = 16
	MaxExternalStateLength = 256
)

// Generator mints verifiers and states. A zero Generator reads crypto/rand.
type Generator struct {
	Rand io.Reader
}

// Verifier returns a fresh code verifier.
func (g Generator) Verifier() (string, error) {
	return g.random()
}

// State returns a fresh state token with the same entropy as a verifier.
func (g Generator) State() (string, error) {
	return g.random()
}

func (g Generator) random() (string, error) {
	s, err := encryption.GenerateRandomString(g.Rand, EntropyBytes)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrEntropySourceUnavailable, err)
	}
	return s, nil
}

// Challenge derives the S256 code challenge: base64url(sha256(verifier)) without padding.
func Challenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// ValidVerifier reports whether v satisfies the RFC 7636 §4.1 length and
// unreserved character set rules.
func ValidVerifier(v string) bool {
	return unreserved(v, MinVerifierLength, MaxVerifierLength)
}

// ValidExternalState reports whether a caller supplied state is long enough
// to serve as a correlation key and survives a URL round trip unchanged.
func ValidExternalState(s string) bool {
	return unreserved(s, MinExternalStateLength, MaxExternalStateLength)
}

func unreserved(v string, minLen, maxLen int) bool {
	if len(v) < minLen || len(v) > maxLen {
		return false
	}
	for _, c := range v {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-', c == '.', c == '_', c == '~':
		default:
			return false
		}
	}
	return true
}
