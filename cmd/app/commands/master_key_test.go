package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunCreateMasterKey(t *testing.T) {
	ctx := context.Background()

	t.Run("plaintext-output", func(t *testing.T) {
		var out bytes.Buffer
		err := RunCreateMasterKey(ctx, &out, "")
		require.NoError(t, err)

		output := out.String()
		require.Contains(t, output, "MASTER_KEY=")
		require.NotContains(t, output, "MASTER_KEY_KMS_URI=")

		// Extract the quoted base64 value and check the decoded length.
		var encoded string
		for _, line := range strings.Split(output, "\n") {
			if strings.HasPrefix(line, "MASTER_KEY=") {
				encoded = strings.Trim(strings.TrimPrefix(line, "MASTER_KEY="), `"`)
			}
		}
		require.NotEmpty(t, encoded)

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)
		require.Len(t, decoded, 32)
	})

	t.Run("unique-keys", func(t *testing.T) {
		var first, second bytes.Buffer
		require.NoError(t, RunCreateMasterKey(ctx, &first, ""))
		require.NoError(t, RunCreateMasterKey(ctx, &second, ""))
		require.NotEqual(t, first.String(), second.String())
	})

	t.Run("invalid-kms-uri", func(t *testing.T) {
		var out bytes.Buffer
		err := RunCreateMasterKey(ctx, &out, "not-a-kms-uri")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to open KMS keeper")
	})

	t.Run("local-kms-keeper", func(t *testing.T) {
		// base64key:// is the localsecrets provider from gocloud.dev.
		localKey := base64.URLEncoding.EncodeToString(bytes.Repeat([]byte{0x42}, 32))

		var out bytes.Buffer
		err := RunCreateMasterKey(ctx, &out, "base64key://"+localKey)
		require.NoError(t, err)
		require.Contains(t, out.String(), "MASTER_KEY=")
		require.Contains(t, out.String(), "MASTER_KEY_KMS_URI=")
	})
}
