// Package service provides the cryptographic primitives behind the key
// lifecycle manager: AEAD ciphers, key material generation, wrapping under the
// master key, KMS access, and usage log signing.
package service

import (
	keysDomain "github.com/phivault/phivault/internal/keys/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext and nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	CreateCipher(key []byte, alg keysDomain.Algorithm) (AEAD, error)
}

// KeyGenerator produces raw key material from a cryptographically secure RNG.
type KeyGenerator interface {
	// Generate returns fresh key material for the given level and type. For
	// asymmetric keys the material is the PKCS#8 DER encoding of the private
	// key. The caller owns the bytes and must zero them after wrapping.
	Generate(level keysDomain.EncryptionLevel, keyType keysDomain.KeyType) ([]byte, keysDomain.Algorithm, int, error)
}

// KeyWrapper wraps and unwraps key material under the master key.
type KeyWrapper interface {
	// Wrap encrypts raw key material and returns the wrapped bytes and nonce.
	Wrap(material []byte) (wrapped, nonce []byte, err error)

	// Unwrap decrypts wrapped key material back into plaintext bytes.
	Unwrap(wrapped, nonce []byte) ([]byte, error)
}

// UsageSigner signs and verifies usage log records so tampering with the
// append-only log is detectable.
type UsageSigner interface {
	// Sign returns the HMAC-SHA256 signature for the record.
	Sign(record *keysDomain.KeyUsageRecord) ([]byte, error)

	// Verify returns nil when the record's signature matches its contents.
	Verify(record *keysDomain.KeyUsageRecord) error
}
