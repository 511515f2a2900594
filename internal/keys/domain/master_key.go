package domain

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/phivault/phivault/internal/environment"
	apperrors "github.com/phivault/phivault/internal/errors"
)

const (
	// MinMasterKeySize is the minimum decoded master key length in bytes.
	MinMasterKeySize = 32

	// MinMasterKeyEntropy is the Shannon entropy gate in bits per byte.
	// A coarse sanity check against degenerate keys (all-zero, repeated
	// patterns), not a cryptographic strength proof.
	MinMasterKeyEntropy = 4.0
)

// MasterKey is the one root key used to wrap and unwrap all encryption key
// material. It is held in process memory for the process lifetime and never
// written to shared mutable state outside this subsystem.
type MasterKey struct {
	Key []byte
}

// Zero clears the master key material from memory.
func (m *MasterKey) Zero() {
	Zero(m.Key)
	m.Key = nil
}

// KMSKeeper decrypts ciphertext through an external key management service.
// *secrets.Keeper from gocloud.dev implements it.
type KMSKeeper interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// KMSOpener opens a KMSKeeper for a provider key URI.
type KMSOpener interface {
	OpenKeeper(ctx context.Context, keyURI string) (KMSKeeper, error)
}

// MasterKeyInput carries the externally supplied master key configuration.
type MasterKeyInput struct {
	// EncodedKey is the base64 master key. When KMSKeyURI is set it is the
	// base64 KMS ciphertext of the key instead.
	EncodedKey string

	// KMSKeyURI selects a KMS keeper (awskms://, gcpkms://, azurekeyvault://,
	// hashivault://, base64key://) used to unwrap EncodedKey before validation.
	KMSKeyURI string

	// DevKeyFile, when non-empty in development, persists a synthesized key to
	// a restricted-permission local file so restarts keep previously encrypted
	// development data readable.
	DevKeyFile string
}

// Entropy computes the Shannon entropy of b in bits per byte over its byte
// histogram. Returns 0 for empty input.
func Entropy(b []byte) float64 {
	if len(b) == 0 {
		return 0
	}

	var histogram [256]int
	for _, v := range b {
		histogram[v]++
	}

	total := float64(len(b))
	entropy := 0.0
	for _, count := range histogram {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// ValidateMasterKey decodes and validates an encoded master key. All three
// checks run even when an earlier one fails, so the joined error names every
// problem with the supplied key. Measured entropy values are logged server
// side only and never appear in the returned error.
func ValidateMasterKey(encoded string, logger *slog.Logger) ([]byte, error) {
	var errs []error

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidEncoding, err))
		decoded = nil
	}

	if len(decoded) < MinMasterKeySize {
		errs = append(errs, ErrKeyTooShort)
	}

	entropy := Entropy(decoded)
	if entropy < MinMasterKeyEntropy {
		errs = append(errs, ErrInsufficientEntropy)
	}

	if joined := apperrors.Join(errs...); joined != nil {
		Zero(decoded)
		logger.Error(
			"master key validation failed",
			slog.Int("decoded_bytes", len(decoded)),
			slog.Float64("entropy_bits_per_byte", entropy),
		)
		return nil, joined
	}

	return decoded, nil
}

// LoadMasterKey obtains and validates the master key according to the
// environment policy.
//
// Production, staging, and testing require an externally supplied key; a
// missing key is a fatal startup error. Development validates a supplied key
// identically, and synthesizes a random 32-byte key when none is configured.
// When input.KMSKeyURI is set, the configured value is first unwrapped through
// the KMS keeper.
func LoadMasterKey(
	ctx context.Context,
	input MasterKeyInput,
	policy environment.Policy,
	kms KMSOpener,
	logger *slog.Logger,
) (*MasterKey, error) {
	if input.EncodedKey == "" {
		if !policy.AllowEphemeralMasterKey() {
			return nil, fmt.Errorf(
				"%w: environment %s requires a configured master key",
				ErrMissingMasterKey, policy.Current(),
			)
		}
		return developmentMasterKey(input, logger)
	}

	encoded := input.EncodedKey
	if input.KMSKeyURI != "" {
		unwrapped, err := unwrapWithKMS(ctx, input, kms)
		if err != nil {
			return nil, err
		}
		encoded = unwrapped
	}

	key, err := ValidateMasterKey(encoded, logger)
	if err != nil {
		return nil, err
	}

	return &MasterKey{Key: key}, nil
}

// unwrapWithKMS decrypts the configured ciphertext through the KMS keeper and
// returns the base64 master key it protects.
func unwrapWithKMS(ctx context.Context, input MasterKeyInput, kms KMSOpener) (string, error) {
	keeper, err := kms.OpenKeeper(ctx, input.KMSKeyURI)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to open KMS keeper")
	}
	defer keeper.Close()

	ciphertext, err := base64.StdEncoding.DecodeString(input.EncodedKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	plaintext, err := keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to decrypt master key via KMS")
	}

	return string(plaintext), nil
}

// developmentMasterKey synthesizes a random master key for development use,
// optionally persisting it to a restricted-permission local file. The warning
// is loud and not gated on log level configuration.
func developmentMasterKey(input MasterKeyInput, logger *slog.Logger) (*MasterKey, error) {
	if input.DevKeyFile != "" {
		encoded, err := os.ReadFile(input.DevKeyFile)
		switch {
		case err == nil:
			key, vErr := ValidateMasterKey(string(encoded), logger)
			if vErr != nil {
				return nil, apperrors.Wrap(vErr, "persisted development master key is invalid")
			}
			logger.Warn(
				"loaded persisted development master key; this key is unsuitable for production",
				slog.String("file", input.DevKeyFile),
			)
			return &MasterKey{Key: key}, nil
		case !os.IsNotExist(err):
			// Only a missing file warrants generating a replacement. Any
			// other read failure must not overwrite a key that may still
			// protect existing data.
			return nil, apperrors.Wrap(err, "failed to read development master key file")
		}
	}

	key := make([]byte, MinMasterKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, apperrors.Wrap(err, "failed to generate development master key")
	}

	if input.DevKeyFile != "" {
		encoded := base64.StdEncoding.EncodeToString(key)
		if err := os.WriteFile(input.DevKeyFile, []byte(encoded), 0o600); err != nil {
			Zero(key)
			return nil, apperrors.Wrap(err, "failed to persist development master key")
		}
		logger.Warn(
			"persisted generated development master key; this key is unsuitable for production",
			slog.String("file", input.DevKeyFile),
		)
	} else {
		logger.Warn(
			"generated ephemeral development master key; previously encrypted data will be unreadable after restart",
		)
	}

	return &MasterKey{Key: key}, nil
}
