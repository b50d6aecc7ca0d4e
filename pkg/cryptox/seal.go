package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// sealInfo binds derived keys to this use so the same key material can be
// shared with other subsystems without key reuse.
const sealInfo = "authsession credential record v1"

// ErrSealedTooShort is returned when a sealed blob cannot contain a nonce.
var ErrSealedTooShort = errors.New("cryptox: sealed data too short")

// Sealer encrypts credential records with AES-256-GCM before they are handed
// to a storage backend.
// The output format is: [12-byte nonce][ciphertext][16-byte auth tag]
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a 32-byte AES key from keyMaterial with HKDF-SHA256.
// keyMaterial may be any length but should carry at least 128 bits of entropy.
func NewSealer(keyMaterial []byte) (*Sealer, error) {
	if len(keyMaterial) == 0 {
		return nil, fmt.Errorf("seal key material must not be empty")
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, keyMaterial, nil, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive seal key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh random nonce. additional is
// authenticated but not encrypted; callers pass the storage key so a record
// copied under another key fails to open.
func (s *Sealer) Seal(plaintext, additional []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return s.aead.Seal(nonce, nonce, plaintext, additional), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed, additional []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, ErrSealedTooShort
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, additional)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}
