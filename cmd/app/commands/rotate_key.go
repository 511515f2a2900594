package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	keysUseCase "github.com/phivault/phivault/internal/keys/usecase"
)

// RunRotateKey mints a successor for an active key and makes it the new
// active key for its level. The old key stays retrievable so previously
// encrypted data remains decryptable.
func RunRotateKey(
	ctx context.Context,
	keyManager keysUseCase.KeyManager,
	logger *slog.Logger,
	writer io.Writer,
	keyID string,
	userID string,
	format string,
) error {
	oldID, err := uuid.Parse(keyID)
	if err != nil {
		return fmt.Errorf("invalid key ID %q: %w", keyID, err)
	}

	logger.Info("rotating key",
		slog.String("key_id", oldID.String()),
		slog.String("user_id", userID),
	)

	successor, err := keyManager.RotateKey(ctx, oldID, userID)
	if err != nil {
		return fmt.Errorf("failed to rotate key: %w", err)
	}

	if format == "json" {
		result := map[string]interface{}{
			"id":            successor.ID.String(),
			"level":         successor.Level,
			"key_type":      successor.KeyType,
			"algorithm":     successor.Algorithm,
			"key_size_bits": successor.KeySizeBits,
			"rotated_from":  oldID.String(),
			"created_at":    successor.CreatedAt,
			"expires_at":    successor.ExpiresAt,
		}
		jsonBytes, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, _ = fmt.Fprintln(writer, string(jsonBytes))
		return nil
	}

	_, _ = fmt.Fprintf(writer, "Key rotated successfully\n\n")
	_, _ = fmt.Fprintf(writer, "New Key ID:   %s\n", successor.ID)
	_, _ = fmt.Fprintf(writer, "Level:        %s\n", successor.Level)
	_, _ = fmt.Fprintf(writer, "Algorithm:    %s (%d bits)\n", successor.Algorithm, successor.KeySizeBits)
	_, _ = fmt.Fprintf(writer, "Rotated From: %s\n", oldID)
	_, _ = fmt.Fprintf(writer, "Expires At:   %s\n", successor.ExpiresAt.Format("2006-01-02 15:04:05"))
	return nil
}
