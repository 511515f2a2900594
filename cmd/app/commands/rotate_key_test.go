package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	apperrors "github.com/phivault/phivault/internal/errors"
	keysDomain "github.com/phivault/phivault/internal/keys/domain"
	"github.com/phivault/phivault/internal/keys/usecase/mocks"
)

func TestRunRotateKey(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	oldID := uuid.Must(uuid.NewV7())

	successor := &keysDomain.EncryptionKey{
		ID:          uuid.Must(uuid.NewV7()),
		KeyType:     keysDomain.KeyTypeSymmetric,
		Level:       keysDomain.LevelHealthcare,
		Algorithm:   keysDomain.AES128GCM,
		KeySizeBits: 128,
		IsActive:    true,
		RotatedFrom: uuid.NullUUID{UUID: oldID, Valid: true},
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   time.Now().UTC().Add(365 * 24 * time.Hour),
	}

	t.Run("success-text", func(t *testing.T) {
		mockManager := &mocks.MockKeyManager{}
		mockManager.On("RotateKey", ctx, oldID, "cli:test").Return(successor, nil)

		var out bytes.Buffer
		err := RunRotateKey(ctx, mockManager, logger, &out, oldID.String(), "cli:test", "text")
		require.NoError(t, err)
		require.Contains(t, out.String(), "Key rotated successfully")
		require.Contains(t, out.String(), successor.ID.String())
		require.Contains(t, out.String(), oldID.String())
		mockManager.AssertExpectations(t)
	})

	t.Run("success-json", func(t *testing.T) {
		mockManager := &mocks.MockKeyManager{}
		mockManager.On("RotateKey", ctx, oldID, "cli:test").Return(successor, nil)

		var out bytes.Buffer
		err := RunRotateKey(ctx, mockManager, logger, &out, oldID.String(), "cli:test", "json")
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(out.Bytes(), &result)
		require.NoError(t, err)
		require.Equal(t, successor.ID.String(), result["id"])
		require.Equal(t, oldID.String(), result["rotated_from"])
		mockManager.AssertExpectations(t)
	})

	t.Run("invalid-key-id", func(t *testing.T) {
		var out bytes.Buffer
		err := RunRotateKey(ctx, nil, logger, &out, "not-a-uuid", "cli:test", "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid key ID")
	})

	t.Run("rotation-error", func(t *testing.T) {
		mockManager := &mocks.MockKeyManager{}
		mockManager.On("RotateKey", ctx, oldID, "cli:test").
			Return(nil, keysDomain.ErrInactiveKey)

		var out bytes.Buffer
		err := RunRotateKey(ctx, mockManager, logger, &out, oldID.String(), "cli:test", "text")
		require.Error(t, err)
		require.ErrorIs(t, err, keysDomain.ErrInactiveKey)
	})

	t.Run("not-found", func(t *testing.T) {
		mockManager := &mocks.MockKeyManager{}
		mockManager.On("RotateKey", ctx, oldID, "cli:test").
			Return(nil, keysDomain.ErrKeyNotFound)

		var out bytes.Buffer
		err := RunRotateKey(ctx, mockManager, logger, &out, oldID.String(), "cli:test", "text")
		require.Error(t, err)
		require.True(t, apperrors.Is(err, keysDomain.ErrKeyNotFound))
	})
}
