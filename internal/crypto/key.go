package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// Constants for AES-256-GCM encryption.
const (
	NonceSize = 12
	TagSize   = 16
	KeySize   = 32

	// MinSecretSize is the shortest master secret accepted.
	MinSecretSize = 16
)

// CredentialInfo is the HKDF info string for agreement credentials.
const CredentialInfo = "winsync agreement credentials v1"

// Errors returned by crypto operations.
var (
	ErrInvalidKey        = errors.New("crypto: encryption key must be 32 bytes")
	ErrSecretTooShort    = errors.New("crypto: master secret must be at least 16 bytes")
	ErrDecryptFailed     = errors.New("crypto: decryption failed")
	ErrInvalidCiphertext = errors.New("crypto: ciphertext too short")
	ErrKeyFileNotFound   = errors.New("crypto: key file not found")
)

// EncryptionKey is an AES-256-GCM key.
type EncryptionKey struct {
	aead cipher.AEAD
}

// NewEncryptionKey creates a key from 32 raw bytes.
func NewEncryptionKey(key []byte) (*EncryptionKey, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &EncryptionKey{aead: gcm}, nil
}

// DeriveKey derives a key from a master secret with HKDF-SHA256.
func DeriveKey(secret, salt []byte, info string) (*EncryptionKey, error) {
	if len(secret) < MinSecretSize {
		return nil, ErrSecretTooShort
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("crypto: derive key: %w", err)
	}
	return NewEncryptionKey(key)
}

// LoadSecretFile reads a master secret. A file holding only hex digits is
// hex-decoded; anything else is used as is after trimming whitespace.
func LoadSecretFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyFileNotFound
		}
		return nil, err
	}
	trimmed := strings.TrimSpace(string(data))
	if len(trimmed)%2 == 0 {
		if decoded, err := hex.DecodeString(trimmed); err == nil {
			return decoded, nil
		}
	}
	return []byte(trimmed), nil
}

// GenerateSecret returns a random 32-byte master secret.
func GenerateSecret() ([]byte, error) {
	secret := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// Encrypt seals plaintext with a random nonce.
// Output layout: nonce (12 bytes) + ciphertext + tag (16 bytes).
func (k *EncryptionKey) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return k.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens data produced by Encrypt.
func (k *EncryptionKey) Decrypt(data []byte) ([]byte, error) {
	if len(data) < NonceSize+TagSize {
		return nil, ErrInvalidCiphertext
	}
	plaintext, err := k.aead.Open(nil, data[:NonceSize], data[NonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
