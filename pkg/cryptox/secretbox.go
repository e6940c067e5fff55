package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecrypt reports ciphertext that could not be authenticated or decrypted.
// Deliberately unspecific: wrong key, truncation, and tampering all look the
// same to callers.
var ErrDecrypt = errors.New("cryptox: unable to decrypt")

// SealSecret encrypts a small secret (e.g. a stored platform access token)
// with XChaCha20-Poly1305. The random nonce is prepended and the whole blob
// is returned base64url-encoded, ready for a TEXT column.
func SealSecret(plaintext string, key []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("cryptox: bad sealing key: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("cryptox: nonce generation failed: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// OpenSecret reverses SealSecret.
func OpenSecret(encoded string, key []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("cryptox: bad sealing key: %w", err)
	}

	blob, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(blob) < aead.NonceSize() {
		return "", ErrDecrypt
	}

	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
