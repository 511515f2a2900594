package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	keysDomain "github.com/phivault/phivault/internal/keys/domain"
	"github.com/phivault/phivault/internal/keys/usecase"
	"github.com/phivault/phivault/internal/keys/usecase/mocks"
)

func TestRunStatus(t *testing.T) {
	ctx := context.Background()

	report := &usecase.StatusReport{
		ActiveKeys: map[keysDomain.EncryptionLevel]int{
			keysDomain.LevelBasic:      1,
			keysDomain.LevelHealthcare: 1,
			keysDomain.LevelCritical:   1,
		},
		UsageLast24h: map[keysDomain.Operation]int{
			keysDomain.OperationEncrypt: 42,
			keysDomain.OperationDecrypt: 17,
		},
	}

	t.Run("success-text", func(t *testing.T) {
		mockService := &mocks.MockEncryptionService{}
		mockService.On("Status", ctx).Return(report, nil)

		var out bytes.Buffer
		err := RunStatus(ctx, mockService, &out, "text")
		require.NoError(t, err)
		require.Contains(t, out.String(), "Key Manager Status")
		require.Contains(t, out.String(), "healthcare:")
		require.Contains(t, out.String(), "42")
		mockService.AssertExpectations(t)
	})

	t.Run("success-json", func(t *testing.T) {
		mockService := &mocks.MockEncryptionService{}
		mockService.On("Status", ctx).Return(report, nil)

		var out bytes.Buffer
		err := RunStatus(ctx, mockService, &out, "json")
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(out.Bytes(), &result)
		require.NoError(t, err)

		activeKeys, ok := result["active_keys"].(map[string]interface{})
		require.True(t, ok)
		require.Equal(t, float64(1), activeKeys["healthcare"])
		mockService.AssertExpectations(t)
	})

	t.Run("status-error", func(t *testing.T) {
		mockService := &mocks.MockEncryptionService{}
		mockService.On("Status", ctx).Return(nil, errors.New("database gone"))

		var out bytes.Buffer
		err := RunStatus(ctx, mockService, &out, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to collect status")
	})
}
