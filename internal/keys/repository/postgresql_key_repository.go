// Package repository implements key store persistence for PostgreSQL and MySQL.
//
// Two tables back the subsystem: encryption_keys holds wrapped key records and
// key_usage_log is the append-only usage trail. Repositories only ever see
// wrapped key material; plaintext bytes never reach this layer. All methods
// are transaction-aware via database.GetTx, which rotation relies on for its
// atomic active-key flip.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/phivault/phivault/internal/database"
	apperrors "github.com/phivault/phivault/internal/errors"
	keysDomain "github.com/phivault/phivault/internal/keys/domain"
)

// PostgreSQLKeyRepository implements encryption key persistence for PostgreSQL.
// Uses native UUID and BYTEA types with transaction support via database.GetTx().
type PostgreSQLKeyRepository struct {
	db *sql.DB
}

// NewPostgreSQLKeyRepository creates a new PostgreSQLKeyRepository.
func NewPostgreSQLKeyRepository(db *sql.DB) *PostgreSQLKeyRepository {
	return &PostgreSQLKeyRepository{db: db}
}

const postgresKeyColumns = `id, key_type, encryption_level, algorithm, key_size_bits,
		wrapped_key, wrap_nonce, is_active, rotated_from, created_at, expires_at`

// Create inserts a new encryption key record.
func (p *PostgreSQLKeyRepository) Create(ctx context.Context, key *keysDomain.EncryptionKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO encryption_keys (` + postgresKeyColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID,
		key.KeyType,
		key.Level,
		key.Algorithm,
		key.KeySizeBits,
		key.WrappedKey,
		key.WrapNonce,
		key.IsActive,
		key.RotatedFrom,
		key.CreatedAt,
		key.ExpiresAt,
	)
	if err != nil {
		// The partial unique index on active (level, type) pairs rejects a
		// second active key; surface that as a conflict, not an internal error.
		var pqErr *pq.Error
		if apperrors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf(
				"%w: active %s key already exists for level %s",
				apperrors.ErrConflict, key.KeyType, key.Level,
			)
		}
		return apperrors.Wrap(err, "failed to create encryption key")
	}
	return nil
}

// Get retrieves an encryption key by its ID. Retired keys remain retrievable
// here so previously encrypted data can still be decrypted.
func (p *PostgreSQLKeyRepository) Get(
	ctx context.Context,
	keyID uuid.UUID,
) (*keysDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresKeyColumns + ` FROM encryption_keys WHERE id = $1`

	key, err := scanPostgresKey(querier.QueryRowContext(ctx, query, keyID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, keysDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get encryption key")
	}
	return key, nil
}

// GetActiveForLevel retrieves the single active key for the given level.
func (p *PostgreSQLKeyRepository) GetActiveForLevel(
	ctx context.Context,
	level keysDomain.EncryptionLevel,
	keyType keysDomain.KeyType,
) (*keysDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresKeyColumns + `
			  FROM encryption_keys
			  WHERE encryption_level = $1 AND key_type = $2 AND is_active = true`

	key, err := scanPostgresKey(querier.QueryRowContext(ctx, query, level, keyType))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, keysDomain.ErrNoActiveKey
		}
		return nil, apperrors.Wrap(err, "failed to get active encryption key")
	}
	return key, nil
}

// ReplaceActive retires the old key and promotes its successor. Both updates
// run inside the caller's transaction, so readers observe either the
// pre-rotation or the post-rotation active key. Deactivating first keeps the
// unique index on active (level, type) pairs satisfied throughout.
func (p *PostgreSQLKeyRepository) ReplaceActive(
	ctx context.Context,
	level keysDomain.EncryptionLevel,
	oldID, newID uuid.UUID,
) error {
	querier := database.GetTx(ctx, p.db)

	deactivate := `UPDATE encryption_keys
				   SET is_active = false
				   WHERE encryption_level = $1 AND id = $2 AND is_active = true`

	result, err := querier.ExecContext(ctx, deactivate, level, oldID)
	if err != nil {
		return apperrors.Wrap(err, "failed to retire active key")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected != 1 {
		return fmt.Errorf(
			"%w: key %s is not the active key for level %s",
			apperrors.ErrConflict, oldID, level,
		)
	}

	activate := `UPDATE encryption_keys
				 SET is_active = true
				 WHERE encryption_level = $1 AND id = $2`

	result, err = querier.ExecContext(ctx, activate, level, newID)
	if err != nil {
		return apperrors.Wrap(err, "failed to activate replacement key")
	}
	affected, err = result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected != 1 {
		return fmt.Errorf(
			"%w: replacement key %s not found for level %s",
			apperrors.ErrConflict, newID, level,
		)
	}
	return nil
}

// CountActiveByLevel returns the number of active symmetric data keys per
// encryption level. Asymmetric keys are tracked separately and excluded here
// so a healthy inventory reads as exactly one key per level.
func (p *PostgreSQLKeyRepository) CountActiveByLevel(
	ctx context.Context,
) (map[keysDomain.EncryptionLevel]int, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT encryption_level, COUNT(*)
			  FROM encryption_keys
			  WHERE is_active = true AND key_type = $1
			  GROUP BY encryption_level`

	rows, err := querier.QueryContext(ctx, query, keysDomain.KeyTypeSymmetric)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count active keys")
	}
	defer rows.Close()

	counts := make(map[keysDomain.EncryptionLevel]int)
	for rows.Next() {
		var level keysDomain.EncryptionLevel
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan active key count")
		}
		counts[level] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate active key counts")
	}
	return counts, nil
}

// rowScanner matches both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgresKey(row rowScanner) (*keysDomain.EncryptionKey, error) {
	var key keysDomain.EncryptionKey
	err := row.Scan(
		&key.ID,
		&key.KeyType,
		&key.Level,
		&key.Algorithm,
		&key.KeySizeBits,
		&key.WrappedKey,
		&key.WrapNonce,
		&key.IsActive,
		&key.RotatedFrom,
		&key.CreatedAt,
		&key.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &key, nil
}
