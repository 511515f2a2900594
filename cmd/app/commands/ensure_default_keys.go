package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	keysUseCase "github.com/phivault/phivault/internal/keys/usecase"
)

// RunEnsureDefaultKeys provisions one active symmetric key per encryption
// level. Levels that already have an active key are left untouched, so the
// command is safe to run repeatedly.
func RunEnsureDefaultKeys(
	ctx context.Context,
	keyManager keysUseCase.KeyManager,
	logger *slog.Logger,
	writer io.Writer,
	userID string,
) error {
	logger.Info("ensuring default keys", slog.String("user_id", userID))

	if err := keyManager.EnsureDefaultKeys(ctx, userID); err != nil {
		return fmt.Errorf("failed to ensure default keys: %w", err)
	}

	_, _ = fmt.Fprintln(writer, "Default keys are in place: one active key per encryption level.")
	return nil
}
