package encryption

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// GenerateRandomString reads length bytes from r (crypto/rand when r is nil)
// and returns them base64url encoded without padding.
func GenerateRandomString(r io.Reader, length int) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	bytes := make([]byte, length)
	if _, err := io.ReadFull(r, bytes); err != nil {
		return "", fmt.Errorf("failed to generate random string: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
