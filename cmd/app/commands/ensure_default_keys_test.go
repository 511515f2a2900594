package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phivault/phivault/internal/keys/usecase/mocks"
)

func TestRunEnsureDefaultKeys(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("success", func(t *testing.T) {
		mockManager := &mocks.MockKeyManager{}
		mockManager.On("EnsureDefaultKeys", ctx, "cli:test").Return(nil)

		var out bytes.Buffer
		err := RunEnsureDefaultKeys(ctx, mockManager, logger, &out, "cli:test")
		require.NoError(t, err)
		require.Contains(t, out.String(), "Default keys are in place")
		mockManager.AssertExpectations(t)
	})

	t.Run("failure", func(t *testing.T) {
		mockManager := &mocks.MockKeyManager{}
		mockManager.On("EnsureDefaultKeys", ctx, "cli:test").Return(errors.New("database gone"))

		var out bytes.Buffer
		err := RunEnsureDefaultKeys(ctx, mockManager, logger, &out, "cli:test")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to ensure default keys")
	})
}
