package encryption

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const AlgorithmXChaCha20Poly1305 = "xchacha20-poly1305"

// EncryptedProps represents encrypted properties with metadata
type EncryptedProps struct {
	Data      string `json:"data"`      // Base64 encoded ciphertext
	IV        string `json:"iv"`        // Base64 encoded nonce
	Algorithm string `json:"algorithm"` // Encryption algorithm used
}

// DecodeKey parses a base64 encoded 32-byte key.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return key, nil
}

// EncryptData marshals data to JSON and seals it with key.
func EncryptData(data any, key []byte) (*EncryptedProps, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &EncryptedProps{
		Data:      base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, plaintext, nil)),
		IV:        base64.StdEncoding.EncodeToString(nonce),
		Algorithm: AlgorithmXChaCha20Poly1305,
	}, nil
}

// DecryptData opens props with key and unmarshals the plaintext into out.
func DecryptData(props *EncryptedProps, key []byte, out any) error {
	if props == nil {
		return errors.New("no encrypted data")
	}
	if props.Algorithm != AlgorithmXChaCha20Poly1305 {
		return fmt.Errorf("unsupported algorithm %q", props.Algorithm)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce, err := base64.StdEncoding.DecodeString(props.IV)
	if err != nil {
		return fmt.Errorf("failed to decode nonce: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return fmt.Errorf("invalid nonce size %d", len(nonce))
	}
	ciphertext, err := base64.StdEncoding.DecodeString(props.Data)
	if err != nil {
		return fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("failed to decrypt data: %w", err)
	}
	return json.Unmarshal(plaintext, out)
}
