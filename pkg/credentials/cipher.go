// Package credentials manages connector token pairs: AES-256-GCM at rest,
// single-flight forced refresh in memory.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned when the encryption key is empty.
	ErrInvalidKey = errors.New("invalid encryption key: must not be empty")
	// ErrDecryptionFailed is returned for any undecryptable ciphertext:
	// wrong key, truncation, or tampering. Decryption fails closed; it
	// never returns garbage plaintext.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or wrong key")
)

// TokenCipher provides AES-256-GCM authenticated encryption for token
// material. Ciphertext encoding is base64(nonce || ciphertext || tag).
type TokenCipher struct {
	gcm cipher.AEAD
}

// NewTokenCipher creates a cipher from a key string. A base64 value that
// decodes to exactly 32 bytes is used directly; anything else is treated
// as a passphrase and hashed with SHA-256.
func NewTokenCipher(keyInput string) (*TokenCipher, error) {
	if keyInput == "" {
		return nil, ErrInvalidKey
	}

	var key []byte
	decoded, err := base64.StdEncoding.DecodeString(keyInput)
	if err == nil && len(decoded) == 32 {
		key = decoded
	} else {
		hash := sha256.Sum256([]byte(keyInput))
		key = hash[:]
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &TokenCipher{gcm: gcm}, nil
}

// Encrypt seals plaintext into base64(nonce || ciphertext || tag). Empty
// strings pass through unencrypted so optional refresh tokens stay empty.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt opens base64(nonce || ciphertext || tag).
func (c *TokenCipher) Decrypt(encrypted string) (string, error) {
	if encrypted == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrDecryptionFailed)
	}

	nonceSize := c.gcm.NonceSize()
	if len(data) < nonceSize+c.gcm.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryptionFailed)
	}
	return string(plaintext), nil
}
