package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	keysDomain "github.com/phivault/phivault/internal/keys/domain"
	keysUseCase "github.com/phivault/phivault/internal/keys/usecase"
)

// RunStatus reports active key counts per encryption level and usage counts
// for the last 24 hours.
func RunStatus(
	ctx context.Context,
	encryptionService keysUseCase.EncryptionService,
	writer io.Writer,
	format string,
) error {
	report, err := encryptionService.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect status: %w", err)
	}

	if format == "json" {
		jsonBytes, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, _ = fmt.Fprintln(writer, string(jsonBytes))
		return nil
	}

	_, _ = fmt.Fprintf(writer, "Key Manager Status\n")
	_, _ = fmt.Fprintf(writer, "==================\n\n")

	_, _ = fmt.Fprintf(writer, "Active Keys:\n")
	for _, level := range keysDomain.Levels() {
		_, _ = fmt.Fprintf(writer, "  %-12s %d\n", level+":", report.ActiveKeys[level])
	}

	_, _ = fmt.Fprintf(writer, "\nUsage (last 24h):\n")
	for _, op := range []keysDomain.Operation{
		keysDomain.OperationGenerate,
		keysDomain.OperationRetrieve,
		keysDomain.OperationEncrypt,
		keysDomain.OperationDecrypt,
		keysDomain.OperationRotate,
	} {
		_, _ = fmt.Fprintf(writer, "  %-12s %d\n", op+":", report.UsageLast24h[op])
	}

	return nil
}
