package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/phivault/phivault/internal/database"
	apperrors "github.com/phivault/phivault/internal/errors"
	keysDomain "github.com/phivault/phivault/internal/keys/domain"
	keysService "github.com/phivault/phivault/internal/keys/service"
)

// keyManagerUseCase implements the KeyManager interface.
//
// It orchestrates the key generator and wrapper services against the key
// repository, enforcing the lifecycle rules: one active key per level and key
// type, successors linked to their predecessor via RotatedFrom, and retired
// keys kept for decryption. Plaintext key material only ever lives in memory;
// it is wrapped under the master key before touching the repository and
// zeroed as soon as wrapping is done.
type keyManagerUseCase struct {
	txManager database.TxManager
	keyRepo   KeyRepository
	generator keysService.KeyGenerator
	wrapper   keysService.KeyWrapper
	auditor   Auditor
	lifetime  time.Duration
	group     singleflight.Group
}

// NewKeyManager creates a KeyManager. A non-positive lifetime falls back to
// the default key lifetime.
func NewKeyManager(
	txManager database.TxManager,
	keyRepo KeyRepository,
	generator keysService.KeyGenerator,
	wrapper keysService.KeyWrapper,
	auditor Auditor,
	lifetime time.Duration,
) KeyManager {
	if lifetime <= 0 {
		lifetime = keysDomain.DefaultKeyLifetime
	}
	return &keyManagerUseCase{
		txManager: txManager,
		keyRepo:   keyRepo,
		generator: generator,
		wrapper:   wrapper,
		auditor:   auditor,
		lifetime:  lifetime,
	}
}

// mintKey generates fresh material for the level and type and returns a
// persisted-ready key with wrapped material. The plaintext material is zeroed
// before returning.
func (k *keyManagerUseCase) mintKey(
	level keysDomain.EncryptionLevel,
	keyType keysDomain.KeyType,
	active bool,
) (*keysDomain.EncryptionKey, error) {
	material, alg, bits, err := k.generator.Generate(level, keyType)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(material)

	wrapped, nonce, err := k.wrapper.Wrap(material)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &keysDomain.EncryptionKey{
		ID:          uuid.Must(uuid.NewV7()),
		KeyType:     keyType,
		Level:       level,
		Algorithm:   alg,
		KeySizeBits: bits,
		WrappedKey:  wrapped,
		WrapNonce:   nonce,
		IsActive:    active,
		CreatedAt:   now,
		ExpiresAt:   now.Add(k.lifetime),
	}, nil
}

// GenerateKey mints, wraps and persists a new active key. Refuses to create a
// second active key for a (level, type) pair that already has one; use
// RotateKey for that.
func (k *keyManagerUseCase) GenerateKey(
	ctx context.Context,
	level keysDomain.EncryptionLevel,
	keyType keysDomain.KeyType,
	userID string,
) (*keysDomain.EncryptionKey, error) {
	key, err := k.mintKey(level, keyType, true)
	if err != nil {
		k.auditor.Record(ctx, uuid.Nil, keysDomain.OperationGenerate, userID, false)
		return nil, err
	}

	// The pre-check gives a readable conflict error; the unique index on
	// active (level, type) pairs is what actually closes the race between
	// concurrent creators, surfacing as ErrConflict from Create.
	err = k.txManager.WithTx(ctx, func(ctx context.Context) error {
		_, err := k.keyRepo.GetActiveForLevel(ctx, level, keyType)
		if err == nil {
			return fmt.Errorf(
				"%w: active %s key already exists for level %s",
				apperrors.ErrConflict, keyType, level,
			)
		}
		if !apperrors.Is(err, keysDomain.ErrNoActiveKey) {
			return err
		}
		return k.keyRepo.Create(ctx, key)
	})
	if err != nil {
		// The minted key never reached the repository, so the failure
		// record carries no key ID.
		k.auditor.Record(ctx, uuid.Nil, keysDomain.OperationGenerate, userID, false)
		return nil, err
	}

	k.auditor.Record(ctx, key.ID, keysDomain.OperationGenerate, userID, true)
	return key, nil
}

// GetActiveKey returns the active symmetric key for the level with its
// plaintext material unwrapped. Concurrent callers for the same level share
// one repository round trip via singleflight; the audit record is still
// written per caller.
func (k *keyManagerUseCase) GetActiveKey(
	ctx context.Context,
	level keysDomain.EncryptionLevel,
	userID string,
) (*keysDomain.EncryptionKey, error) {
	result, err, _ := k.group.Do(string(level), func() (any, error) {
		key, err := k.keyRepo.GetActiveForLevel(ctx, level, keysDomain.KeyTypeSymmetric)
		if err != nil {
			return nil, err
		}
		return key, nil
	})
	if err != nil {
		k.auditor.Record(ctx, uuid.Nil, keysDomain.OperationRetrieve, userID, false)
		return nil, err
	}

	key := result.(*keysDomain.EncryptionKey)
	unwrapped, err := k.checkAndUnwrap(key)
	k.auditor.Record(ctx, key.ID, keysDomain.OperationRetrieve, userID, err == nil)
	if err != nil {
		return nil, err
	}
	return unwrapped, nil
}

// GetKey returns a key by ID with its material unwrapped. Retired keys are
// returned too: old ciphertexts must stay decryptable after rotation. Expiry
// is not enforced here for the same reason.
func (k *keyManagerUseCase) GetKey(
	ctx context.Context,
	keyID uuid.UUID,
	userID string,
) (*keysDomain.EncryptionKey, error) {
	key, err := k.keyRepo.Get(ctx, keyID)
	if err != nil {
		k.auditor.Record(ctx, uuid.Nil, keysDomain.OperationRetrieve, userID, false)
		return nil, err
	}

	material, err := k.wrapper.Unwrap(key.WrappedKey, key.WrapNonce)
	k.auditor.Record(ctx, key.ID, keysDomain.OperationRetrieve, userID, err == nil)
	if err != nil {
		return nil, err
	}

	unwrapped := *key
	unwrapped.Key = material
	return &unwrapped, nil
}

// RotateKey mints a successor with the same level and type as the given
// active key and atomically makes it the active key. The old key stays in the
// repository for decryption of existing ciphertexts.
func (k *keyManagerUseCase) RotateKey(
	ctx context.Context,
	oldKeyID uuid.UUID,
	userID string,
) (*keysDomain.EncryptionKey, error) {
	old, err := k.keyRepo.Get(ctx, oldKeyID)
	if err != nil {
		k.auditor.Record(ctx, uuid.Nil, keysDomain.OperationRotate, userID, false)
		return nil, err
	}
	if !old.IsActive {
		k.auditor.Record(ctx, old.ID, keysDomain.OperationRotate, userID, false)
		return nil, keysDomain.ErrInactiveKey
	}

	successor, err := k.mintKey(old.Level, old.KeyType, false)
	if err != nil {
		k.auditor.Record(ctx, old.ID, keysDomain.OperationRotate, userID, false)
		return nil, err
	}
	successor.RotatedFrom = uuid.NullUUID{UUID: old.ID, Valid: true}

	err = k.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := k.keyRepo.Create(ctx, successor); err != nil {
			return err
		}
		return k.keyRepo.ReplaceActive(ctx, old.Level, old.ID, successor.ID)
	})
	k.auditor.Record(ctx, old.ID, keysDomain.OperationRotate, userID, err == nil)
	if err != nil {
		return nil, err
	}

	successor.IsActive = true
	return successor, nil
}

// EnsureDefaultKeys bootstraps one active symmetric key per level. Levels
// that already have an active key are left untouched, so the call is safe to
// run on every startup.
func (k *keyManagerUseCase) EnsureDefaultKeys(ctx context.Context, userID string) error {
	for _, level := range keysDomain.Levels() {
		_, err := k.keyRepo.GetActiveForLevel(ctx, level, keysDomain.KeyTypeSymmetric)
		if err == nil {
			continue
		}
		if !apperrors.Is(err, keysDomain.ErrNoActiveKey) {
			return err
		}
		if _, err := k.GenerateKey(ctx, level, keysDomain.KeyTypeSymmetric, userID); err != nil {
			// A conflict means another instance won the bootstrap race for
			// this level, which is the desired end state.
			if apperrors.Is(err, apperrors.ErrConflict) {
				continue
			}
			return err
		}
	}
	return nil
}

// checkAndUnwrap runs the defensive lifecycle checks and unwraps the key
// material into a copy of the key.
func (k *keyManagerUseCase) checkAndUnwrap(
	key *keysDomain.EncryptionKey,
) (*keysDomain.EncryptionKey, error) {
	if !key.IsActive {
		return nil, keysDomain.ErrInactiveKey
	}
	if key.IsExpired(time.Now().UTC()) {
		return nil, keysDomain.ErrExpiredKey
	}

	material, err := k.wrapper.Unwrap(key.WrappedKey, key.WrapNonce)
	if err != nil {
		return nil, err
	}

	unwrapped := *key
	unwrapped.Key = material
	return &unwrapped, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
