package domain

import (
	"time"

	"github.com/google/uuid"
)

// EncryptionKey represents one key in the lifecycle manager.
//
// WrappedKey always holds the key material encrypted under the master key;
// the plaintext material is never persisted or logged. Key holds the unwrapped
// bytes only while a key is in use and must be zeroed by the holder.
//
// Exactly one key per encryption level has IsActive set at any time; that key
// is selected for new encryption operations. Rotated-out keys stay retrievable
// by ID so previously encrypted data remains decryptable, and are never
// deleted by this subsystem.
type EncryptionKey struct {
	ID          uuid.UUID       // Unique identifier (UUIDv7), immutable
	KeyType     KeyType         // Symmetric or asymmetric
	Level       EncryptionLevel // Sensitivity level the key serves
	Algorithm   Algorithm       // Construct the key is used with
	KeySizeBits int             // 128, 256, 2048 or 4096
	WrappedKey  []byte          // Key material encrypted under the master key
	WrapNonce   []byte          // Nonce used when wrapping the material
	Key         []byte          // Plaintext material (in memory only, never persisted)
	IsActive    bool            // Whether this is the level's default key
	RotatedFrom uuid.NullUUID   // Key this one superseded, lookup only
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// SelectAlgorithm picks the algorithm and key size for a new key by level and
// type. Returns ErrUnsupportedLevel for unknown levels.
func SelectAlgorithm(level EncryptionLevel, keyType KeyType) (Algorithm, int, error) {
	switch keyType {
	case KeyTypeSymmetric:
		switch level {
		case LevelBasic, LevelHealthcare:
			return AES128GCM, 128, nil
		case LevelCritical:
			return AES256GCM, 256, nil
		}
	case KeyTypeAsymmetric:
		switch level {
		case LevelBasic, LevelHealthcare:
			return RSA2048, 2048, nil
		case LevelCritical:
			return RSA4096, 4096, nil
		}
	default:
		return "", 0, ErrUnsupportedAlgorithm
	}
	return "", 0, ErrUnsupportedLevel
}

// IsExpired reports whether the key's expiry is in the past at the given time.
func (k *EncryptionKey) IsExpired(now time.Time) bool {
	return !k.ExpiresAt.IsZero() && k.ExpiresAt.Before(now)
}

// ParseLevel converts a level name into an EncryptionLevel.
func ParseLevel(value string) (EncryptionLevel, error) {
	switch EncryptionLevel(value) {
	case LevelBasic:
		return LevelBasic, nil
	case LevelHealthcare:
		return LevelHealthcare, nil
	case LevelCritical:
		return LevelCritical, nil
	default:
		return "", ErrUnsupportedLevel
	}
}

// ParseKeyType converts a key type name into a KeyType.
func ParseKeyType(value string) (KeyType, error) {
	switch KeyType(value) {
	case KeyTypeSymmetric:
		return KeyTypeSymmetric, nil
	case KeyTypeAsymmetric:
		return KeyTypeAsymmetric, nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}
