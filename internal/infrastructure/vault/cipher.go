// Package vault seals integration credentials at rest with XChaCha20-Poly1305.
package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/restohub/backend/internal/domain/integration"
)

// sealedPrefix versions the envelope so the key scheme can be rotated
const sealedPrefix = "v1:"

// MinMasterKeyLength is the minimum accepted master key length
const MinMasterKeyLength = 32

var (
	ErrMasterKeyTooShort = fmt.Errorf("vault: master key must be at least %d characters", MinMasterKeyLength)
	ErrMalformedSecret   = errors.New("vault: malformed sealed secret")
	ErrDecryptFailed     = errors.New("vault: secret could not be decrypted")
)

// Cipher implements integration.CredentialVault
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the data key from the master key with HKDF-SHA256
func NewCipher(masterKey string) (*Cipher, error) {
	if len(masterKey) < MinMasterKeyLength {
		return nil, ErrMasterKeyTooShort
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(masterKey), nil, []byte("restohub integration credentials"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("vault: derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext. Empty input seals to the empty string.
func (c *Cipher) Seal(plaintext []byte) (string, error) {
	if len(plaintext) == 0 {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}

	out := c.aead.Seal(nonce, nonce, plaintext, nil)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal
func (c *Cipher) Open(sealed string) ([]byte, error) {
	if sealed == "" {
		return nil, nil
	}
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return nil, ErrMalformedSecret
	}

	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return nil, ErrMalformedSecret
	}
	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return nil, ErrMalformedSecret
	}

	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

var _ integration.CredentialVault = (*Cipher)(nil)
