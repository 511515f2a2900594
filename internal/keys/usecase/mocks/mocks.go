// Package mocks provides testify mock implementations of the keys use case
// interfaces for use in tests.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	keysDomain "github.com/phivault/phivault/internal/keys/domain"
	"github.com/phivault/phivault/internal/keys/usecase"
)

// MockKeyRepository is a mock implementation of KeyRepository.
type MockKeyRepository struct {
	mock.Mock
}

func (m *MockKeyRepository) Create(ctx context.Context, key *keysDomain.EncryptionKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockKeyRepository) Get(
	ctx context.Context,
	keyID uuid.UUID,
) (*keysDomain.EncryptionKey, error) {
	args := m.Called(ctx, keyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.EncryptionKey), args.Error(1)
}

func (m *MockKeyRepository) GetActiveForLevel(
	ctx context.Context,
	level keysDomain.EncryptionLevel,
	keyType keysDomain.KeyType,
) (*keysDomain.EncryptionKey, error) {
	args := m.Called(ctx, level, keyType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.EncryptionKey), args.Error(1)
}

func (m *MockKeyRepository) ReplaceActive(
	ctx context.Context,
	level keysDomain.EncryptionLevel,
	oldID, newID uuid.UUID,
) error {
	args := m.Called(ctx, level, oldID, newID)
	return args.Error(0)
}

func (m *MockKeyRepository) CountActiveByLevel(
	ctx context.Context,
) (map[keysDomain.EncryptionLevel]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[keysDomain.EncryptionLevel]int), args.Error(1)
}

// MockUsageLogRepository is a mock implementation of UsageLogRepository.
type MockUsageLogRepository struct {
	mock.Mock
}

func (m *MockUsageLogRepository) Append(ctx context.Context, record *keysDomain.KeyUsageRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockUsageLogRepository) CountByOperationSince(
	ctx context.Context,
	since time.Time,
) (map[keysDomain.Operation]int, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[keysDomain.Operation]int), args.Error(1)
}

func (m *MockUsageLogRepository) ListSince(
	ctx context.Context,
	since time.Time,
	limit int,
) ([]*keysDomain.KeyUsageRecord, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*keysDomain.KeyUsageRecord), args.Error(1)
}

// MockKeyManager is a mock implementation of KeyManager.
type MockKeyManager struct {
	mock.Mock
}

func (m *MockKeyManager) GenerateKey(
	ctx context.Context,
	level keysDomain.EncryptionLevel,
	keyType keysDomain.KeyType,
	userID string,
) (*keysDomain.EncryptionKey, error) {
	args := m.Called(ctx, level, keyType, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.EncryptionKey), args.Error(1)
}

func (m *MockKeyManager) GetActiveKey(
	ctx context.Context,
	level keysDomain.EncryptionLevel,
	userID string,
) (*keysDomain.EncryptionKey, error) {
	args := m.Called(ctx, level, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.EncryptionKey), args.Error(1)
}

func (m *MockKeyManager) GetKey(
	ctx context.Context,
	keyID uuid.UUID,
	userID string,
) (*keysDomain.EncryptionKey, error) {
	args := m.Called(ctx, keyID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.EncryptionKey), args.Error(1)
}

func (m *MockKeyManager) RotateKey(
	ctx context.Context,
	oldKeyID uuid.UUID,
	userID string,
) (*keysDomain.EncryptionKey, error) {
	args := m.Called(ctx, oldKeyID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.EncryptionKey), args.Error(1)
}

func (m *MockKeyManager) EnsureDefaultKeys(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockEncryptionService is a mock implementation of EncryptionService.
type MockEncryptionService struct {
	mock.Mock
}

func (m *MockEncryptionService) Encrypt(
	ctx context.Context,
	level keysDomain.EncryptionLevel,
	plaintext []byte,
	userID string,
) (*keysDomain.EncryptedPackage, error) {
	args := m.Called(ctx, level, plaintext, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.EncryptedPackage), args.Error(1)
}

func (m *MockEncryptionService) Decrypt(
	ctx context.Context,
	pkg *keysDomain.EncryptedPackage,
	userID string,
) ([]byte, error) {
	args := m.Called(ctx, pkg, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockEncryptionService) Status(ctx context.Context) (*usecase.StatusReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.StatusReport), args.Error(1)
}

// MockAuditor is a mock implementation of Auditor.
type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) Record(
	ctx context.Context,
	keyID uuid.UUID,
	op keysDomain.Operation,
	userID string,
	success bool,
) {
	m.Called(ctx, keyID, op, userID, success)
}

func (m *MockAuditor) Verify(
	ctx context.Context,
	since time.Time,
	limit int,
) ([]*keysDomain.KeyUsageRecord, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*keysDomain.KeyUsageRecord), args.Error(1)
}
