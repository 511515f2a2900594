package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	keysDomain "github.com/phivault/phivault/internal/keys/domain"
	keysService "github.com/phivault/phivault/internal/keys/service"
)

// RunCreateMasterKey generates a 32-byte master key and prints the
// environment variables to configure it. When kmsKeyURI is set, the key is
// encrypted with the KMS keeper before encoding, so the plaintext never
// reaches the process environment. Key material is zeroed after encoding.
func RunCreateMasterKey(ctx context.Context, writer io.Writer, kmsKeyURI string) error {
	masterKey := make([]byte, keysDomain.MinMasterKeySize)
	if _, err := rand.Read(masterKey); err != nil {
		return fmt.Errorf("failed to generate master key: %w", err)
	}
	defer keysDomain.Zero(masterKey)

	output := masterKey
	if kmsKeyURI != "" {
		keeper, err := keysService.NewKMSService().OpenKeeper(ctx, kmsKeyURI)
		if err != nil {
			return fmt.Errorf("failed to open KMS keeper: %w", err)
		}
		defer func() {
			if closeErr := keeper.Close(); closeErr != nil {
				_, _ = fmt.Fprintf(writer, "# warning: failed to close KMS keeper: %v\n", closeErr)
			}
		}()

		encrypter, ok := keeper.(interface {
			Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
		})
		if !ok {
			return fmt.Errorf("KMS keeper does not support encryption")
		}

		ciphertext, err := encrypter.Encrypt(ctx, masterKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt master key with KMS: %w", err)
		}
		output = ciphertext
	}

	encodedKey := base64.StdEncoding.EncodeToString(output)

	_, _ = fmt.Fprintln(writer, "# Master Key Configuration")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintf(writer, "MASTER_KEY=%q\n", encodedKey)
	if kmsKeyURI != "" {
		_, _ = fmt.Fprintf(writer, "MASTER_KEY_KMS_URI=%q\n", kmsKeyURI)
	} else {
		_, _ = fmt.Fprintln(writer)
		_, _ = fmt.Fprintln(writer, "# The key above is plaintext base64. For production, protect it with a")
		_, _ = fmt.Fprintln(writer, "# KMS provider instead: --kms-key-uri=\"awskms://...\" (or gcpkms://,")
		_, _ = fmt.Fprintln(writer, "# azurekeyvault://, hashivault://, base64key:// for local development)")
	}

	return nil
}
