package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/phivault/phivault/internal/errors"
	keysDomain "github.com/phivault/phivault/internal/keys/domain"
	keysService "github.com/phivault/phivault/internal/keys/service"
)

// tokenVersionPrefix versions the embedded-nonce token format used by basic
// and healthcare level ciphertexts, so the layout can evolve without breaking
// old tokens.
const tokenVersionPrefix = "v1:"

// encryptionUseCase implements the EncryptionService interface.
//
// Basic and healthcare levels produce a compact versioned token with the
// nonce embedded: "v1:<base64(nonce || ciphertext+tag)>". Critical level
// packages carry the nonce and authentication tag explicitly, split out of
// the sealed output, so downstream systems can store them in separate fields.
type encryptionUseCase struct {
	keyManager  KeyManager
	aeadManager keysService.AEADManager
	keyRepo     KeyRepository
	usageRepo   UsageLogRepository
	auditor     Auditor
}

// NewEncryptionService creates an EncryptionService.
func NewEncryptionService(
	keyManager KeyManager,
	aeadManager keysService.AEADManager,
	keyRepo KeyRepository,
	usageRepo UsageLogRepository,
	auditor Auditor,
) EncryptionService {
	return &encryptionUseCase{
		keyManager:  keyManager,
		aeadManager: aeadManager,
		keyRepo:     keyRepo,
		usageRepo:   usageRepo,
		auditor:     auditor,
	}
}

// Encrypt protects plaintext under the active key for the level. The
// returned package pins the exact key ID so decryption stays correct across
// rotations.
func (e *encryptionUseCase) Encrypt(
	ctx context.Context,
	level keysDomain.EncryptionLevel,
	plaintext []byte,
	userID string,
) (*keysDomain.EncryptedPackage, error) {
	key, err := e.keyManager.GetActiveKey(ctx, level, userID)
	if err != nil {
		// No key was resolved, but the failed attempt is still audited.
		e.auditor.Record(ctx, uuid.Nil, keysDomain.OperationEncrypt, userID, false)
		return nil, err
	}
	defer zeroBytes(key.Key)

	pkg, err := e.seal(key, level, plaintext)
	e.auditor.Record(ctx, key.ID, keysDomain.OperationEncrypt, userID, err == nil)
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

func (e *encryptionUseCase) seal(
	key *keysDomain.EncryptionKey,
	level keysDomain.EncryptionLevel,
	plaintext []byte,
) (*keysDomain.EncryptedPackage, error) {
	cipher, err := e.aeadManager.CreateCipher(key.Key, key.Algorithm)
	if err != nil {
		return nil, err
	}

	ciphertext, nonce, err := cipher.Encrypt(plaintext, nil)
	if err != nil {
		return nil, err
	}

	pkg := &keysDomain.EncryptedPackage{
		KeyID:       key.ID,
		Level:       level,
		Algorithm:   key.Algorithm,
		EncryptedAt: time.Now().UTC(),
	}

	if level == keysDomain.LevelCritical {
		// Tag travels in its own field, split off the sealed output.
		tagStart := len(ciphertext) - keysDomain.GCMTagSize
		pkg.Ciphertext = ciphertext[:tagStart]
		pkg.Nonce = nonce
		pkg.Tag = ciphertext[tagStart:]
		return pkg, nil
	}

	pkg.Ciphertext = []byte(buildToken(nonce, ciphertext))
	return pkg, nil
}

// Decrypt recovers the plaintext from an encrypted package. Any tampering
// with ciphertext, nonce or tag surfaces as the single generic
// ErrAuthenticationFailed.
func (e *encryptionUseCase) Decrypt(
	ctx context.Context,
	pkg *keysDomain.EncryptedPackage,
	userID string,
) ([]byte, error) {
	key, err := e.keyManager.GetKey(ctx, pkg.KeyID, userID)
	if err != nil {
		e.auditor.Record(ctx, uuid.Nil, keysDomain.OperationDecrypt, userID, false)
		if apperrors.Is(err, keysDomain.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", keysDomain.ErrUnknownKey, pkg.KeyID)
		}
		return nil, err
	}
	defer zeroBytes(key.Key)

	plaintext, err := e.open(key, pkg)
	e.auditor.Record(ctx, key.ID, keysDomain.OperationDecrypt, userID, err == nil)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

func (e *encryptionUseCase) open(
	key *keysDomain.EncryptionKey,
	pkg *keysDomain.EncryptedPackage,
) ([]byte, error) {
	if key.Algorithm != pkg.Algorithm {
		return nil, fmt.Errorf(
			"%w: package says %s, key uses %s",
			keysDomain.ErrAlgorithmMismatch, pkg.Algorithm, key.Algorithm,
		)
	}

	cipher, err := e.aeadManager.CreateCipher(key.Key, key.Algorithm)
	if err != nil {
		return nil, err
	}

	var nonce, ciphertext []byte
	if len(pkg.Nonce) > 0 {
		nonce = pkg.Nonce
		ciphertext = make([]byte, 0, len(pkg.Ciphertext)+len(pkg.Tag))
		ciphertext = append(ciphertext, pkg.Ciphertext...)
		ciphertext = append(ciphertext, pkg.Tag...)
	} else {
		nonce, ciphertext, err = parseToken(string(pkg.Ciphertext))
		if err != nil {
			return nil, err
		}
	}

	plaintext, err := cipher.Decrypt(ciphertext, nonce, nil)
	if err != nil {
		return nil, keysDomain.ErrAuthenticationFailed
	}
	return plaintext, nil
}

// Status reports active key counts per level and usage counts for the last
// 24 hours.
func (e *encryptionUseCase) Status(ctx context.Context) (*StatusReport, error) {
	activeKeys, err := e.keyRepo.CountActiveByLevel(ctx)
	if err != nil {
		return nil, err
	}

	usage, err := e.usageRepo.CountByOperationSince(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	return &StatusReport{
		ActiveKeys:   activeKeys,
		UsageLast24h: usage,
	}, nil
}

func buildToken(nonce, ciphertext []byte) string {
	buf := make([]byte, 0, len(nonce)+len(ciphertext))
	buf = append(buf, nonce...)
	buf = append(buf, ciphertext...)
	return tokenVersionPrefix + base64.StdEncoding.EncodeToString(buf)
}

func parseToken(token string) (nonce, ciphertext []byte, err error) {
	if !strings.HasPrefix(token, tokenVersionPrefix) {
		return nil, nil, fmt.Errorf(
			"%w: missing %q token prefix", keysDomain.ErrInvalidPackageFormat, tokenVersionPrefix,
		)
	}

	raw, err := base64.StdEncoding.DecodeString(token[len(tokenVersionPrefix):])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad token encoding", keysDomain.ErrInvalidPackageFormat)
	}
	if len(raw) <= keysDomain.GCMNonceSize {
		return nil, nil, fmt.Errorf("%w: token too short", keysDomain.ErrInvalidPackageFormat)
	}

	return raw[:keysDomain.GCMNonceSize], raw[keysDomain.GCMNonceSize:], nil
}
