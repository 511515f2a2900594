package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	keysDomain "github.com/phivault/phivault/internal/keys/domain"
	keysUseCase "github.com/phivault/phivault/internal/keys/usecase"
)

// RunGenerateKey mints a new active key for an encryption level that has
// none yet. Levels with an existing active key are rejected; use rotate-key
// to replace one.
func RunGenerateKey(
	ctx context.Context,
	keyManager keysUseCase.KeyManager,
	logger *slog.Logger,
	writer io.Writer,
	levelName string,
	keyTypeName string,
	userID string,
	format string,
) error {
	level, err := keysDomain.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("invalid level %q (valid options: basic, healthcare, critical): %w", levelName, err)
	}

	keyType, err := keysDomain.ParseKeyType(keyTypeName)
	if err != nil {
		return fmt.Errorf("invalid key type %q (valid options: symmetric, asymmetric): %w", keyTypeName, err)
	}

	logger.Info("generating key",
		slog.String("level", string(level)),
		slog.String("key_type", string(keyType)),
		slog.String("user_id", userID),
	)

	key, err := keyManager.GenerateKey(ctx, level, keyType, userID)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	if format == "json" {
		result := map[string]interface{}{
			"id":            key.ID.String(),
			"level":         key.Level,
			"key_type":      key.KeyType,
			"algorithm":     key.Algorithm,
			"key_size_bits": key.KeySizeBits,
			"created_at":    key.CreatedAt,
			"expires_at":    key.ExpiresAt,
		}
		jsonBytes, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, _ = fmt.Fprintln(writer, string(jsonBytes))
		return nil
	}

	_, _ = fmt.Fprintf(writer, "Key generated successfully\n\n")
	_, _ = fmt.Fprintf(writer, "Key ID:     %s\n", key.ID)
	_, _ = fmt.Fprintf(writer, "Level:      %s\n", key.Level)
	_, _ = fmt.Fprintf(writer, "Type:       %s\n", key.KeyType)
	_, _ = fmt.Fprintf(writer, "Algorithm:  %s (%d bits)\n", key.Algorithm, key.KeySizeBits)
	_, _ = fmt.Fprintf(writer, "Expires At: %s\n", key.ExpiresAt.Format("2006-01-02 15:04:05"))
	return nil
}
