package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	keysDomain "github.com/phivault/phivault/internal/keys/domain"
)

// AESGCMCipher implements the AEAD interface using AES-GCM with a 128 or
// 256 bit key.
//
// The cipher instance is stateless and safe for concurrent use from multiple
// goroutines. Each encryption operation draws a unique 12-byte nonce from
// crypto/rand; with GCM a nonce must never be reused under the same key, so the
// nonce is never cached or derived from the input.
type AESGCMCipher struct {
	aead cipher.AEAD
}

// NewAESGCM creates a new AES-GCM cipher instance. The key must be exactly
// 16 bytes (AES-128) or 32 bytes (AES-256).
func NewAESGCM(key []byte) (*AESGCMCipher, error) {
	if len(key) != 16 && len(key) != 32 {
		return nil, keysDomain.ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMCipher{aead: aead}, nil
}

// Encrypt encrypts plaintext with optional additional authenticated data.
// The returned ciphertext includes the 16-byte authentication tag appended to
// the end; the randomly generated nonce is returned separately and must be
// stored alongside the ciphertext.
func (a *AESGCMCipher) Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, a.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext = a.aead.Seal(nil, nonce, plaintext, aad)
	return ciphertext, nonce, nil
}

// Decrypt decrypts ciphertext using the provided nonce and AAD. The
// authentication tag is verified before any plaintext is returned.
func (a *AESGCMCipher) Decrypt(ciphertext, nonce, aad []byte) ([]byte, error) {
	plaintext, err := a.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}
