// Package usecase implements the business logic for encryption key lifecycle
// management: key generation, retrieval, rotation, data encryption at the
// configured sensitivity levels, and the signed usage audit trail.
//
// Use cases coordinate between services (cryptographic operations) and
// repositories (persistence), and enforce the lifecycle rules: a single active
// key per level, retired keys kept for decryption of old ciphertexts, and
// audit records emitted for every key-affecting operation.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	keysDomain "github.com/phivault/phivault/internal/keys/domain"
)

// KeyRepository defines the interface for encryption key persistence.
//
// Implementations must be transaction-aware via database.GetTx so that
// rotation can create the replacement key and flip the active flag in a
// single transaction.
//
// Available implementations:
//   - PostgreSQLKeyRepository: native UUID and BYTEA types
//   - MySQLKeyRepository: BINARY(16) UUIDs and VARBINARY key material
type KeyRepository interface {
	// Create stores a new encryption key. The wrapped key material and wrap
	// nonce must already be populated; plaintext material is never persisted.
	Create(ctx context.Context, key *keysDomain.EncryptionKey) error

	// Get retrieves a key by ID, including retired keys.
	Get(ctx context.Context, keyID uuid.UUID) (*keysDomain.EncryptionKey, error)

	// GetActiveForLevel retrieves the active key for a level and key type.
	// Returns domain.ErrNoActiveKey when none exists.
	GetActiveForLevel(
		ctx context.Context,
		level keysDomain.EncryptionLevel,
		keyType keysDomain.KeyType,
	) (*keysDomain.EncryptionKey, error)

	// ReplaceActive atomically deactivates oldID and activates newID for the
	// given level.
	ReplaceActive(
		ctx context.Context,
		level keysDomain.EncryptionLevel,
		oldID, newID uuid.UUID,
	) error

	// CountActiveByLevel returns the number of active symmetric data keys
	// per level. Activeness is scoped per (level, key type) pair, so
	// asymmetric keys are excluded to keep the count at one per healthy
	// level.
	CountActiveByLevel(ctx context.Context) (map[keysDomain.EncryptionLevel]int, error)
}

// UsageLogRepository defines the interface for the append-only usage trail.
// Records are only ever inserted; there is no update or delete.
type UsageLogRepository interface {
	// Append inserts a usage record.
	Append(ctx context.Context, record *keysDomain.KeyUsageRecord) error

	// CountByOperationSince returns per-operation counts after the cutoff.
	CountByOperationSince(ctx context.Context, since time.Time) (map[keysDomain.Operation]int, error)

	// ListSince returns up to limit records created at or after the cutoff,
	// oldest first.
	ListSince(ctx context.Context, since time.Time, limit int) ([]*keysDomain.KeyUsageRecord, error)
}

// KeyManager defines the key lifecycle operations.
type KeyManager interface {
	// GenerateKey mints, wraps and persists a new active key for the level
	// and key type. Fails with domain.ErrConflict semantics when an active
	// key already exists for the pair.
	GenerateKey(
		ctx context.Context,
		level keysDomain.EncryptionLevel,
		keyType keysDomain.KeyType,
		userID string,
	) (*keysDomain.EncryptionKey, error)

	// GetActiveKey returns the active symmetric key for the level with its
	// plaintext material unwrapped into Key. Concurrent lookups for the same
	// level are collapsed into a single repository round trip.
	GetActiveKey(
		ctx context.Context,
		level keysDomain.EncryptionLevel,
		userID string,
	) (*keysDomain.EncryptionKey, error)

	// GetKey returns a key by ID with its material unwrapped. Retired keys
	// are returned so old ciphertexts stay decryptable.
	GetKey(ctx context.Context, keyID uuid.UUID, userID string) (*keysDomain.EncryptionKey, error)

	// RotateKey mints a successor for the given active key and atomically
	// makes it the new active key. The old key is retained.
	RotateKey(ctx context.Context, oldKeyID uuid.UUID, userID string) (*keysDomain.EncryptionKey, error)

	// EnsureDefaultKeys bootstraps one active symmetric key per level.
	// Idempotent: levels that already have an active key are left alone.
	EnsureDefaultKeys(ctx context.Context, userID string) error
}

// StatusReport summarizes key inventory and recent usage. ActiveKeys counts
// active symmetric data keys only; a healthy deployment shows one per level.
type StatusReport struct {
	ActiveKeys   map[keysDomain.EncryptionLevel]int `json:"active_keys"`
	UsageLast24h map[keysDomain.Operation]int       `json:"usage_last_24h"`
}

// EncryptionService defines data encryption at the configured levels.
type EncryptionService interface {
	// Encrypt protects plaintext under the active key for the level and
	// returns a self-describing encrypted package.
	Encrypt(
		ctx context.Context,
		level keysDomain.EncryptionLevel,
		plaintext []byte,
		userID string,
	) (*keysDomain.EncryptedPackage, error)

	// Decrypt recovers the plaintext from an encrypted package.
	Decrypt(
		ctx context.Context,
		pkg *keysDomain.EncryptedPackage,
		userID string,
	) ([]byte, error)

	// Status reports active key counts per level and usage counts for the
	// last 24 hours.
	Status(ctx context.Context) (*StatusReport, error)
}

// Auditor records key usage. Implementations must never fail the primary
// operation: audit write errors are logged, not returned.
type Auditor interface {
	// Record writes one signed usage record for the operation. keyID is
	// uuid.Nil when the call failed before any stored key was resolved.
	Record(
		ctx context.Context,
		keyID uuid.UUID,
		op keysDomain.Operation,
		userID string,
		success bool,
	)

	// Verify re-checks the signatures of records created at or after the
	// cutoff and returns the records that fail verification.
	Verify(ctx context.Context, since time.Time, limit int) ([]*keysDomain.KeyUsageRecord, error)
}
