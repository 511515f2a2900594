package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	keysDomain "github.com/phivault/phivault/internal/keys/domain"
	"github.com/phivault/phivault/internal/metrics"
)

const metricsDomain = "keys"

// encryptionServiceWithMetrics decorates EncryptionService with metrics
// instrumentation.
type encryptionServiceWithMetrics struct {
	next    EncryptionService
	metrics metrics.BusinessMetrics
}

// NewEncryptionServiceWithMetrics wraps an EncryptionService with metrics recording.
func NewEncryptionServiceWithMetrics(
	service EncryptionService,
	m metrics.BusinessMetrics,
) EncryptionService {
	return &encryptionServiceWithMetrics{
		next:    service,
		metrics: m,
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Encrypt records metrics for data encryption operations.
func (e *encryptionServiceWithMetrics) Encrypt(
	ctx context.Context,
	level keysDomain.EncryptionLevel,
	plaintext []byte,
	userID string,
) (*keysDomain.EncryptedPackage, error) {
	start := time.Now()
	pkg, err := e.next.Encrypt(ctx, level, plaintext, userID)

	status := statusLabel(err)
	e.metrics.RecordOperation(ctx, metricsDomain, "data_encrypt", status)
	e.metrics.RecordDuration(ctx, metricsDomain, "data_encrypt", time.Since(start), status)

	return pkg, err
}

// Decrypt records metrics for data decryption operations.
func (e *encryptionServiceWithMetrics) Decrypt(
	ctx context.Context,
	pkg *keysDomain.EncryptedPackage,
	userID string,
) ([]byte, error) {
	start := time.Now()
	plaintext, err := e.next.Decrypt(ctx, pkg, userID)

	status := statusLabel(err)
	e.metrics.RecordOperation(ctx, metricsDomain, "data_decrypt", status)
	e.metrics.RecordDuration(ctx, metricsDomain, "data_decrypt", time.Since(start), status)

	return plaintext, err
}

// Status records metrics for status queries.
func (e *encryptionServiceWithMetrics) Status(ctx context.Context) (*StatusReport, error) {
	start := time.Now()
	report, err := e.next.Status(ctx)

	status := statusLabel(err)
	e.metrics.RecordOperation(ctx, metricsDomain, "status", status)
	e.metrics.RecordDuration(ctx, metricsDomain, "status", time.Since(start), status)

	return report, err
}

// keyManagerWithMetrics decorates KeyManager with metrics instrumentation.
type keyManagerWithMetrics struct {
	next    KeyManager
	metrics metrics.BusinessMetrics
}

// NewKeyManagerWithMetrics wraps a KeyManager with metrics recording.
func NewKeyManagerWithMetrics(manager KeyManager, m metrics.BusinessMetrics) KeyManager {
	return &keyManagerWithMetrics{
		next:    manager,
		metrics: m,
	}
}

// GenerateKey records metrics for key generation operations.
func (k *keyManagerWithMetrics) GenerateKey(
	ctx context.Context,
	level keysDomain.EncryptionLevel,
	keyType keysDomain.KeyType,
	userID string,
) (*keysDomain.EncryptionKey, error) {
	start := time.Now()
	key, err := k.next.GenerateKey(ctx, level, keyType, userID)

	status := statusLabel(err)
	k.metrics.RecordOperation(ctx, metricsDomain, "key_generate", status)
	k.metrics.RecordDuration(ctx, metricsDomain, "key_generate", time.Since(start), status)

	return key, err
}

// GetActiveKey records metrics for active key lookups.
func (k *keyManagerWithMetrics) GetActiveKey(
	ctx context.Context,
	level keysDomain.EncryptionLevel,
	userID string,
) (*keysDomain.EncryptionKey, error) {
	start := time.Now()
	key, err := k.next.GetActiveKey(ctx, level, userID)

	status := statusLabel(err)
	k.metrics.RecordOperation(ctx, metricsDomain, "key_get_active", status)
	k.metrics.RecordDuration(ctx, metricsDomain, "key_get_active", time.Since(start), status)

	return key, err
}

// GetKey records metrics for key lookups by ID.
func (k *keyManagerWithMetrics) GetKey(
	ctx context.Context,
	keyID uuid.UUID,
	userID string,
) (*keysDomain.EncryptionKey, error) {
	start := time.Now()
	key, err := k.next.GetKey(ctx, keyID, userID)

	status := statusLabel(err)
	k.metrics.RecordOperation(ctx, metricsDomain, "key_get", status)
	k.metrics.RecordDuration(ctx, metricsDomain, "key_get", time.Since(start), status)

	return key, err
}

// RotateKey records metrics for key rotation operations.
func (k *keyManagerWithMetrics) RotateKey(
	ctx context.Context,
	oldKeyID uuid.UUID,
	userID string,
) (*keysDomain.EncryptionKey, error) {
	start := time.Now()
	key, err := k.next.RotateKey(ctx, oldKeyID, userID)

	status := statusLabel(err)
	k.metrics.RecordOperation(ctx, metricsDomain, "key_rotate", status)
	k.metrics.RecordDuration(ctx, metricsDomain, "key_rotate", time.Since(start), status)

	return key, err
}

// EnsureDefaultKeys records metrics for default key bootstrap runs.
func (k *keyManagerWithMetrics) EnsureDefaultKeys(ctx context.Context, userID string) error {
	start := time.Now()
	err := k.next.EnsureDefaultKeys(ctx, userID)

	status := statusLabel(err)
	k.metrics.RecordOperation(ctx, metricsDomain, "keys_ensure_default", status)
	k.metrics.RecordDuration(ctx, metricsDomain, "keys_ensure_default", time.Since(start), status)

	return err
}
