// Package secrets covers the two data-protection needs of the pipeline:
// reversible encryption for credentials at rest (AES-256-GCM) and one-way
// salted digests that stand in for raw PII in logs and event payloads.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Cipher encrypts and decrypts small secrets with AES-256-GCM.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a hex-encoded 32-byte key.
func NewCipher(hexKey string) (*Cipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("secrets: key is not hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("secrets: key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: init gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext, prefixing the random nonce to the ciphertext.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("secrets: nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a nonce-prefixed ciphertext.
func (c *Cipher) Decrypt(sealed []byte) ([]byte, error) {
	if len(sealed) < c.aead.NonceSize() {
		return nil, errors.New("secrets: ciphertext too short")
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("secrets: decrypt: %w", err)
	}
	return plaintext, nil
}

// Hasher produces deterministic salted digests of PII values. The digest is
// stable for a given salt, so equality checks (same account, same borrower)
// work without the raw value ever leaving the process.
type Hasher struct {
	salt []byte
}

// NewHasher builds a Hasher from the deployment salt.
func NewHasher(salt string) (*Hasher, error) {
	if salt == "" {
		return nil, errors.New("secrets: pii salt is required")
	}
	return &Hasher{salt: []byte(salt)}, nil
}

// Digest returns the hex HMAC-SHA256 of value under the salt.
func (h *Hasher) Digest(value string) string {
	mac := hmac.New(sha256.New, h.salt)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// Mask returns the digest truncated for log-friendly correlation, plus the
// last four characters of the original in the clear.
func (h *Hasher) Mask(value string) string {
	tail := value
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	return h.Digest(value)[:12] + "…" + tail
}
