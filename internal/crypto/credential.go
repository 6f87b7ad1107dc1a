package crypto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// SchemeAESGCM prefixes credentials encrypted by Codec.
const SchemeAESGCM = "{AES-GCM}"

var (
	// ErrUnknownScheme is returned for a "{SCHEME}" prefix the codec cannot
	// reverse.
	ErrUnknownScheme = errors.New("crypto: unknown credential scheme")
	// ErrNoKey is returned when an encrypted credential is decoded by a
	// codec without a key.
	ErrNoKey = errors.New("crypto: no key configured for encrypted credential")
)

// Codec encodes and decodes stored credentials.
type Codec struct {
	key *EncryptionKey
}

// NewCodec creates a codec. A nil key only decodes clear-text credentials.
func NewCodec(key *EncryptionKey) *Codec {
	return &Codec{key: key}
}

// NewCodecFromSecret derives the credential key from a master secret.
func NewCodecFromSecret(secret []byte) (*Codec, error) {
	key, err := DeriveKey(secret, nil, CredentialInfo)
	if err != nil {
		return nil, err
	}
	return NewCodec(key), nil
}

// Encode encrypts a clear-text credential.
func (c *Codec) Encode(plain []byte) (string, error) {
	if c == nil || c.key == nil {
		return "", ErrNoKey
	}
	sealed, err := c.key.Encrypt(plain)
	if err != nil {
		return "", err
	}
	return SchemeAESGCM + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decode returns the clear text of a stored credential.
func (c *Codec) Decode(stored string) ([]byte, error) {
	scheme, body, ok := splitScheme(stored)
	if !ok {
		return []byte(stored), nil
	}
	if !strings.EqualFold(scheme, SchemeAESGCM) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScheme, scheme)
	}
	if c == nil || c.key == nil {
		return nil, ErrNoKey
	}
	sealed, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode credential: %w", err)
	}
	return c.key.Decrypt(sealed)
}

// IsEncrypted reports whether a stored credential carries a scheme prefix.
func IsEncrypted(stored string) bool {
	_, _, ok := splitScheme(stored)
	return ok
}

func splitScheme(stored string) (scheme, body string, ok bool) {
	if !strings.HasPrefix(stored, "{") {
		return "", "", false
	}
	end := strings.IndexByte(stored, '}')
	if end < 2 {
		return "", "", false
	}
	return stored[:end+1], stored[end+1:], true
}
