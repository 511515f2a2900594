package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	keysDomain "github.com/phivault/phivault/internal/keys/domain"
	"github.com/phivault/phivault/internal/keys/usecase/mocks"
)

func TestRunVerifyUsageLog(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("success-text", func(t *testing.T) {
		mockAuditor := &mocks.MockAuditor{}
		mockAuditor.On("Verify", ctx, mock.AnythingOfType("time.Time"), 100).
			Return([]*keysDomain.KeyUsageRecord{}, nil)

		var out bytes.Buffer
		err := RunVerifyUsageLog(ctx, mockAuditor, logger, &out, 7, 100, "text")
		require.NoError(t, err)
		require.Contains(t, out.String(), "Key Usage Log Integrity Verification")
		require.Contains(t, out.String(), "Status: PASSED")
		mockAuditor.AssertExpectations(t)
	})

	t.Run("success-json", func(t *testing.T) {
		mockAuditor := &mocks.MockAuditor{}
		mockAuditor.On("Verify", ctx, mock.AnythingOfType("time.Time"), 100).
			Return([]*keysDomain.KeyUsageRecord{}, nil)

		var out bytes.Buffer
		err := RunVerifyUsageLog(ctx, mockAuditor, logger, &out, 7, 100, "json")
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(out.Bytes(), &result)
		require.NoError(t, err)
		require.Equal(t, true, result["passed"])
		require.Equal(t, float64(0), result["tampered_count"])
		mockAuditor.AssertExpectations(t)
	})

	t.Run("integrity-failure", func(t *testing.T) {
		mockAuditor := &mocks.MockAuditor{}
		tampered := []*keysDomain.KeyUsageRecord{
			{
				ID:        uuid.Must(uuid.NewV7()),
				KeyID:     uuid.Must(uuid.NewV7()),
				Operation: keysDomain.OperationEncrypt,
				CreatedAt: time.Now().UTC(),
			},
		}
		mockAuditor.On("Verify", ctx, mock.AnythingOfType("time.Time"), 100).
			Return(tampered, nil)

		var out bytes.Buffer
		err := RunVerifyUsageLog(ctx, mockAuditor, logger, &out, 7, 100, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "integrity check failed")
		require.Contains(t, out.String(), "WARNING: 1 record(s) failed integrity check!")
	})

	t.Run("invalid-days", func(t *testing.T) {
		err := RunVerifyUsageLog(ctx, nil, logger, nil, 0, 100, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "--days must be positive")
	})

	t.Run("invalid-limit", func(t *testing.T) {
		err := RunVerifyUsageLog(ctx, nil, logger, nil, 7, 0, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "--limit must be positive")
	})
}
