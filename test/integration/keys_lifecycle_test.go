// Package integration provides end-to-end tests for the key lifecycle and
// data encryption flows against both PostgreSQL and MySQL databases.
package integration

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phivault/phivault/internal/app"
	"github.com/phivault/phivault/internal/config"
	apperrors "github.com/phivault/phivault/internal/errors"
	keysDomain "github.com/phivault/phivault/internal/keys/domain"
	"github.com/phivault/phivault/internal/testutil"
)

// lifecycleTestContext holds all dependencies and state for integration testing.
type lifecycleTestContext struct {
	container *app.Container
	db        *sql.DB
	dbDriver  string
}

// generateMasterKeyEnv creates a base64 master key value for the test process.
func generateMasterKeyEnv(t *testing.T) string {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err, "failed to generate master key")
	return base64.StdEncoding.EncodeToString(key)
}

// setupLifecycleTest initializes the container against a live database.
// Skips when the matching TEST_*_DSN environment variable is not set.
func setupLifecycleTest(t *testing.T, dbDriver string) *lifecycleTestContext {
	t.Helper()

	var db *sql.DB
	var dsn string
	if dbDriver == "postgres" {
		db = testutil.SetupPostgresDB(t)
		dsn = os.Getenv("TEST_POSTGRES_DSN")
	} else {
		db = testutil.SetupMySQLDB(t)
		dsn = os.Getenv("TEST_MYSQL_DSN")
	}

	t.Setenv("ENVIRONMENT", "testing")
	t.Setenv("MASTER_KEY", generateMasterKeyEnv(t))
	t.Setenv("MASTER_KEY_KMS_URI", "")
	t.Setenv("DB_DRIVER", dbDriver)
	t.Setenv("DB_CONNECTION_STRING", dsn)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("METRICS_ENABLED", "false")

	cfg := config.Load()
	require.NoError(t, cfg.Validate())

	container := app.NewContainer(cfg)
	t.Cleanup(func() {
		if err := container.Shutdown(context.Background()); err != nil {
			t.Logf("Warning: container shutdown: %v", err)
		}
	})

	return &lifecycleTestContext{
		container: container,
		db:        db,
		dbDriver:  dbDriver,
	}
}

func runLifecycleSuite(t *testing.T, dbDriver string) {
	ctx := context.Background()
	tc := setupLifecycleTest(t, dbDriver)

	keyManager, err := tc.container.KeyManager(ctx)
	require.NoError(t, err)
	encryptionService, err := tc.container.EncryptionService(ctx)
	require.NoError(t, err)
	auditor, err := tc.container.Auditor(ctx)
	require.NoError(t, err)

	require.NoError(t, keyManager.EnsureDefaultKeys(ctx, "test:bootstrap"))

	t.Run("one-active-key-per-level", func(t *testing.T) {
		for _, level := range keysDomain.Levels() {
			key, err := keyManager.GetActiveKey(ctx, level, "test:reader")
			require.NoError(t, err, "level %s", level)
			assert.True(t, key.IsActive)
			assert.Equal(t, level, key.Level)
			assert.NotEmpty(t, key.Key, "material must be unwrapped")
		}

		// A second bootstrap must not mint additional keys.
		require.NoError(t, keyManager.EnsureDefaultKeys(ctx, "test:bootstrap"))
	})

	t.Run("encrypt-decrypt-round-trip", func(t *testing.T) {
		for _, level := range keysDomain.Levels() {
			plaintext := []byte(fmt.Sprintf("patient record for %s", level))

			pkg, err := encryptionService.Encrypt(ctx, level, plaintext, "test:writer")
			require.NoError(t, err, "level %s", level)
			assert.Equal(t, level, pkg.Level)

			decrypted, err := encryptionService.Decrypt(ctx, pkg, "test:reader")
			require.NoError(t, err, "level %s", level)
			assert.Equal(t, plaintext, decrypted)
		}
	})

	t.Run("critical-packages-carry-nonce-and-tag", func(t *testing.T) {
		pkg, err := encryptionService.Encrypt(ctx, keysDomain.LevelCritical, []byte("ssn=000-00-0000"), "test:writer")
		require.NoError(t, err)
		assert.Len(t, pkg.Nonce, keysDomain.GCMNonceSize)
		assert.Len(t, pkg.Tag, keysDomain.GCMTagSize)
	})

	t.Run("tampered-package-fails-closed", func(t *testing.T) {
		pkg, err := encryptionService.Encrypt(ctx, keysDomain.LevelCritical, []byte("dob=1970-01-01"), "test:writer")
		require.NoError(t, err)

		pkg.Tag[0] ^= 0x01
		_, err = encryptionService.Decrypt(ctx, pkg, "test:reader")
		require.ErrorIs(t, err, keysDomain.ErrAuthenticationFailed)
	})

	t.Run("rotation-keeps-old-data-readable", func(t *testing.T) {
		plaintext := []byte("pre-rotation healthcare data")
		oldPkg, err := encryptionService.Encrypt(ctx, keysDomain.LevelHealthcare, plaintext, "test:writer")
		require.NoError(t, err)

		oldKey, err := keyManager.GetActiveKey(ctx, keysDomain.LevelHealthcare, "test:rotator")
		require.NoError(t, err)

		successor, err := keyManager.RotateKey(ctx, oldKey.ID, "test:rotator")
		require.NoError(t, err)
		assert.True(t, successor.IsActive)
		assert.Equal(t, oldKey.ID, successor.RotatedFrom.UUID)

		// New encryptions use the successor.
		newPkg, err := encryptionService.Encrypt(ctx, keysDomain.LevelHealthcare, plaintext, "test:writer")
		require.NoError(t, err)
		assert.Equal(t, successor.ID, newPkg.KeyID)

		// Data encrypted before the rotation still decrypts.
		decrypted, err := encryptionService.Decrypt(ctx, oldPkg, "test:reader")
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	})

	t.Run("status-reflects-inventory-and-usage", func(t *testing.T) {
		report, err := encryptionService.Status(ctx)
		require.NoError(t, err)

		for _, level := range keysDomain.Levels() {
			assert.Equal(t, 1, report.ActiveKeys[level], "level %s", level)
		}
		assert.Positive(t, report.UsageLast24h[keysDomain.OperationEncrypt])
		assert.Positive(t, report.UsageLast24h[keysDomain.OperationDecrypt])
	})

	t.Run("asymmetric-keys-do-not-inflate-inventory", func(t *testing.T) {
		_, err := keyManager.GenerateKey(
			ctx, keysDomain.LevelBasic, keysDomain.KeyTypeAsymmetric, "test:admin",
		)
		require.NoError(t, err)

		// Active inventory counts symmetric data keys only; the asymmetric
		// key lives in its own (level, type) slot.
		report, err := encryptionService.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.ActiveKeys[keysDomain.LevelBasic])
	})

	t.Run("concurrent-generate-yields-one-active-key", func(t *testing.T) {
		// All callers race on the same fresh (level, type) slot; the unique
		// index lets exactly one insert through and the rest get a conflict.
		const workers = 4
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = keyManager.GenerateKey(
					ctx, keysDomain.LevelCritical, keysDomain.KeyTypeAsymmetric, "test:admin",
				)
			}(i)
		}
		wg.Wait()

		var succeeded int
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, apperrors.ErrConflict)
			}
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("usage-log-signatures-verify", func(t *testing.T) {
		since := time.Now().UTC().Add(-time.Hour)
		tampered, err := auditor.Verify(ctx, since, 10000)
		require.NoError(t, err)
		assert.Empty(t, tampered, "no record should fail verification")
	})

	t.Run("usage-log-tampering-detected", func(t *testing.T) {
		// The log is append-only at the application level; edit a row
		// directly to simulate out-of-band tampering.
		query := `UPDATE key_usage_log SET user_id = 'intruder' WHERE user_id = 'test:writer'`
		result, err := tc.db.Exec(query)
		require.NoError(t, err)
		affected, err := result.RowsAffected()
		require.NoError(t, err)
		require.Positive(t, affected)

		since := time.Now().UTC().Add(-time.Hour)
		tampered, verifyErr := auditor.Verify(ctx, since, 10000)
		require.NoError(t, verifyErr)
		assert.Len(t, tampered, int(affected))
	})
}

func TestKeyLifecyclePostgres(t *testing.T) {
	runLifecycleSuite(t, "postgres")
}

func TestKeyLifecycleMySQL(t *testing.T) {
	runLifecycleSuite(t, "mysql")
}
