package domain

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phivault/phivault/internal/environment"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func randomEncodedKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestEntropy(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, 0.0, Entropy(nil))
	})

	t.Run("all-zero bytes have zero entropy", func(t *testing.T) {
		assert.Equal(t, 0.0, Entropy(make([]byte, 32)))
	})

	t.Run("uniform bytes have maximum entropy", func(t *testing.T) {
		b := make([]byte, 256)
		for i := range b {
			b[i] = byte(i)
		}
		assert.InDelta(t, 8.0, Entropy(b), 0.001)
	})

	t.Run("random key clears the gate", func(t *testing.T) {
		key := make([]byte, 32)
		_, err := rand.Read(key)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, Entropy(key), MinMasterKeyEntropy)
	})
}

func TestValidateMasterKey(t *testing.T) {
	logger := testLogger()

	t.Run("accepts a fresh random key", func(t *testing.T) {
		key, err := ValidateMasterKey(randomEncodedKey(t), logger)
		require.NoError(t, err)
		assert.Len(t, key, 32)
	})

	t.Run("rejects invalid base64", func(t *testing.T) {
		_, err := ValidateMasterKey("not-base64!!!", logger)
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})

	t.Run("rejects short keys", func(t *testing.T) {
		short := base64.StdEncoding.EncodeToString([]byte("too short"))
		_, err := ValidateMasterKey(short, logger)
		assert.ErrorIs(t, err, ErrKeyTooShort)
	})

	t.Run("rejects all-zero key with insufficient entropy", func(t *testing.T) {
		zeros := base64.StdEncoding.EncodeToString(make([]byte, 32))
		_, err := ValidateMasterKey(zeros, logger)
		assert.ErrorIs(t, err, ErrInsufficientEntropy)
		assert.NotErrorIs(t, err, ErrKeyTooShort)
	})

	t.Run("reports every failed check at once", func(t *testing.T) {
		short := base64.StdEncoding.EncodeToString([]byte{0, 0, 0, 0})
		_, err := ValidateMasterKey(short, logger)
		assert.ErrorIs(t, err, ErrKeyTooShort)
		assert.ErrorIs(t, err, ErrInsufficientEntropy)
	})
}

func TestLoadMasterKey(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	t.Run("production without key is fatal", func(t *testing.T) {
		policy := environment.NewPolicy(environment.Production)
		_, err := LoadMasterKey(ctx, MasterKeyInput{}, policy, nil, logger)
		assert.ErrorIs(t, err, ErrMissingMasterKey)
	})

	t.Run("staging without key is fatal", func(t *testing.T) {
		policy := environment.NewPolicy(environment.Staging)
		_, err := LoadMasterKey(ctx, MasterKeyInput{}, policy, nil, logger)
		assert.ErrorIs(t, err, ErrMissingMasterKey)
	})

	t.Run("testing without key is fatal", func(t *testing.T) {
		policy := environment.NewPolicy(environment.Testing)
		_, err := LoadMasterKey(ctx, MasterKeyInput{}, policy, nil, logger)
		assert.ErrorIs(t, err, ErrMissingMasterKey)
	})

	t.Run("production with valid key succeeds", func(t *testing.T) {
		policy := environment.NewPolicy(environment.Production)
		input := MasterKeyInput{EncodedKey: randomEncodedKey(t)}
		mk, err := LoadMasterKey(ctx, input, policy, nil, logger)
		require.NoError(t, err)
		defer mk.Zero()
		assert.Len(t, mk.Key, 32)
	})

	t.Run("production with degenerate key is rejected", func(t *testing.T) {
		policy := environment.NewPolicy(environment.Production)
		input := MasterKeyInput{EncodedKey: base64.StdEncoding.EncodeToString(make([]byte, 32))}
		_, err := LoadMasterKey(ctx, input, policy, nil, logger)
		assert.ErrorIs(t, err, ErrInsufficientEntropy)
	})

	t.Run("development without key synthesizes one", func(t *testing.T) {
		policy := environment.NewPolicy(environment.Development)
		mk, err := LoadMasterKey(ctx, MasterKeyInput{}, policy, nil, logger)
		require.NoError(t, err)
		defer mk.Zero()
		assert.Len(t, mk.Key, 32)
		assert.GreaterOrEqual(t, Entropy(mk.Key), MinMasterKeyEntropy)
	})

	t.Run("development with supplied key validates it", func(t *testing.T) {
		policy := environment.NewPolicy(environment.Development)
		input := MasterKeyInput{EncodedKey: "broken base64"}
		_, err := LoadMasterKey(ctx, input, policy, nil, logger)
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})

	t.Run("development persistence round-trips across restarts", func(t *testing.T) {
		policy := environment.NewPolicy(environment.Development)
		file := filepath.Join(t.TempDir(), "master.key")
		input := MasterKeyInput{DevKeyFile: file}

		first, err := LoadMasterKey(ctx, input, policy, nil, logger)
		require.NoError(t, err)
		defer first.Zero()

		info, err := os.Stat(file)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		second, err := LoadMasterKey(ctx, input, policy, nil, logger)
		require.NoError(t, err)
		defer second.Zero()
		assert.True(t, bytes.Equal(first.Key, second.Key))
	})

	t.Run("unreadable development key file is not overwritten", func(t *testing.T) {
		policy := environment.NewPolicy(environment.Development)

		// A directory at the key path fails the read with something other
		// than not-exist. That must surface as an error instead of a fresh
		// key clobbering whatever is there.
		dir := filepath.Join(t.TempDir(), "master.key")
		require.NoError(t, os.Mkdir(dir, 0o700))

		_, err := LoadMasterKey(ctx, MasterKeyInput{DevKeyFile: dir}, policy, nil, logger)
		require.Error(t, err)

		info, statErr := os.Stat(dir)
		require.NoError(t, statErr)
		assert.True(t, info.IsDir(), "key path must be left untouched")
	})
}

func TestMasterKey_Zero(t *testing.T) {
	mk := &MasterKey{Key: []byte{1, 2, 3, 4}}
	mk.Zero()
	assert.Nil(t, mk.Key)
}
