// Package domain defines the core models for the key lifecycle manager: the
// encryption key hierarchy, sensitivity levels, the wrapped key record, the
// encrypted package returned to callers, and the append-only usage log.
//
// The key hierarchy has two tiers: a single master key wraps every data
// encryption key before it reaches the store. Plaintext key material exists
// only in process memory and is zeroed as soon as it is no longer needed.
package domain

import "time"

// EncryptionLevel classifies the sensitivity of the data a key protects.
// The level determines the algorithm and key size used for new keys.
type EncryptionLevel string

const (
	// LevelBasic protects non-regulated operational data.
	LevelBasic EncryptionLevel = "basic"

	// LevelHealthcare protects regulated health data.
	LevelHealthcare EncryptionLevel = "healthcare"

	// LevelCritical protects the most sensitive records and always uses
	// AES-256-GCM with an explicit per-call nonce.
	LevelCritical EncryptionLevel = "critical"
)

// Levels lists every encryption level, in escalating sensitivity order.
// EnsureDefaultKeys iterates this slice to bootstrap one active key per level.
func Levels() []EncryptionLevel {
	return []EncryptionLevel{LevelBasic, LevelHealthcare, LevelCritical}
}

// KeyType distinguishes symmetric keys from asymmetric key pairs.
type KeyType string

const (
	// KeyTypeSymmetric is an AEAD key used for encrypt/decrypt operations.
	KeyTypeSymmetric KeyType = "symmetric"

	// KeyTypeAsymmetric is an RSA key pair. Asymmetric keys are generated,
	// wrapped, and stored but never used by the encryption service itself.
	KeyTypeAsymmetric KeyType = "asymmetric"
)

// Algorithm names the cryptographic construct a key is used with.
//
// All symmetric algorithms provide Authenticated Encryption with Associated
// Data (AEAD), so every ciphertext carries an integrity tag.
type Algorithm string

const (
	// AES128GCM is the 128-bit authenticated construct used for basic and
	// healthcare level symmetric keys.
	AES128GCM Algorithm = "aes-128-gcm"

	// AES256GCM is used for critical level symmetric keys and for wrapping
	// key material under the master key.
	AES256GCM Algorithm = "aes-256-gcm"

	// ChaCha20Poly1305 is an alternative wrap algorithm for platforms
	// without AES hardware acceleration.
	ChaCha20Poly1305 Algorithm = "chacha20-poly1305"

	// RSA2048 is the asymmetric algorithm for basic and healthcare levels.
	RSA2048 Algorithm = "rsa-2048"

	// RSA4096 is the asymmetric algorithm for the critical level.
	RSA4096 Algorithm = "rsa-4096"
)

// Operation identifies a key-affecting action recorded in the usage log.
type Operation string

const (
	OperationGenerate Operation = "generate"
	OperationRetrieve Operation = "retrieve"
	OperationEncrypt  Operation = "encrypt"
	OperationDecrypt  Operation = "decrypt"
	OperationRotate   Operation = "rotate"
)

const (
	// DefaultKeyLifetime is how long a freshly generated key stays valid.
	DefaultKeyLifetime = 365 * 24 * time.Hour

	// GCMNonceSize is the nonce size in bytes for the GCM constructions.
	GCMNonceSize = 12

	// GCMTagSize is the authentication tag size in bytes.
	GCMTagSize = 16
)
