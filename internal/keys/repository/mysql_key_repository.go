package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/phivault/phivault/internal/database"
	apperrors "github.com/phivault/phivault/internal/errors"
	keysDomain "github.com/phivault/phivault/internal/keys/domain"
)

// MySQLKeyRepository implements encryption key persistence for MySQL.
// UUIDs are stored as BINARY(16) for efficient indexing.
type MySQLKeyRepository struct {
	db *sql.DB
}

// NewMySQLKeyRepository creates a new MySQLKeyRepository.
func NewMySQLKeyRepository(db *sql.DB) *MySQLKeyRepository {
	return &MySQLKeyRepository{db: db}
}

const mysqlKeyColumns = `id, key_type, encryption_level, algorithm, key_size_bits,
		wrapped_key, wrap_nonce, is_active, rotated_from, created_at, expires_at`

// Create inserts a new encryption key record.
func (m *MySQLKeyRepository) Create(ctx context.Context, key *keysDomain.EncryptionKey) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := key.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal key ID")
	}

	var rotatedFrom []byte
	if key.RotatedFrom.Valid {
		rotatedFrom, err = key.RotatedFrom.UUID.MarshalBinary()
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal rotated-from ID")
		}
	}

	query := `INSERT INTO encryption_keys (` + mysqlKeyColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		idBytes,
		key.KeyType,
		key.Level,
		key.Algorithm,
		key.KeySizeBits,
		key.WrappedKey,
		key.WrapNonce,
		key.IsActive,
		rotatedFrom,
		key.CreatedAt,
		key.ExpiresAt,
	)
	if err != nil {
		// The unique key over active (level, type) pairs rejects a second
		// active key; surface that as a conflict, not an internal error.
		var mysqlErr *mysql.MySQLError
		if apperrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return fmt.Errorf(
				"%w: active %s key already exists for level %s",
				apperrors.ErrConflict, key.KeyType, key.Level,
			)
		}
		return apperrors.Wrap(err, "failed to create encryption key")
	}
	return nil
}

// Get retrieves an encryption key by its ID.
func (m *MySQLKeyRepository) Get(
	ctx context.Context,
	keyID uuid.UUID,
) (*keysDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := keyID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal key ID")
	}

	query := `SELECT ` + mysqlKeyColumns + ` FROM encryption_keys WHERE id = ?`

	key, err := scanMySQLKey(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, keysDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get encryption key")
	}
	return key, nil
}

// GetActiveForLevel retrieves the single active key for the given level.
func (m *MySQLKeyRepository) GetActiveForLevel(
	ctx context.Context,
	level keysDomain.EncryptionLevel,
	keyType keysDomain.KeyType,
) (*keysDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlKeyColumns + `
			  FROM encryption_keys
			  WHERE encryption_level = ? AND key_type = ? AND is_active = true`

	key, err := scanMySQLKey(querier.QueryRowContext(ctx, query, level, keyType))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, keysDomain.ErrNoActiveKey
		}
		return nil, apperrors.Wrap(err, "failed to get active encryption key")
	}
	return key, nil
}

// ReplaceActive retires the old key and promotes its successor. Both updates
// run inside the caller's transaction; deactivating first keeps the unique
// key over active (level, type) pairs satisfied throughout. MySQL reports
// changed rows, and each update changes exactly one.
func (m *MySQLKeyRepository) ReplaceActive(
	ctx context.Context,
	level keysDomain.EncryptionLevel,
	oldID, newID uuid.UUID,
) error {
	querier := database.GetTx(ctx, m.db)

	oldBytes, err := oldID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal old key ID")
	}
	newBytes, err := newID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal new key ID")
	}

	deactivate := `UPDATE encryption_keys
				   SET is_active = false
				   WHERE encryption_level = ? AND id = ? AND is_active = true`

	result, err := querier.ExecContext(ctx, deactivate, level, oldBytes)
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
				 WHERE encryption_level = ? AND id = ?`

	result, err = querier.ExecContext(ctx, activate, level, newBytes)
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
func (m *MySQLKeyRepository) CountActiveByLevel(
	ctx context.Context,
) (map[keysDomain.EncryptionLevel]int, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT encryption_level, COUNT(*)
			  FROM encryption_keys
			  WHERE is_active = true AND key_type = ?
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

func scanMySQLKey(row rowScanner) (*keysDomain.EncryptionKey, error) {
	var key keysDomain.EncryptionKey
	var idBytes, rotatedFrom []byte
	err := row.Scan(
		&idBytes,
		&key.KeyType,
		&key.Level,
		&key.Algorithm,
		&key.KeySizeBits,
		&key.WrappedKey,
		&key.WrapNonce,
		&key.IsActive,
		&rotatedFrom,
		&key.CreatedAt,
		&key.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	if err := key.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal key ID")
	}
	if len(rotatedFrom) > 0 {
		if err := key.RotatedFrom.UUID.UnmarshalBinary(rotatedFrom); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal rotated-from ID")
		}
		key.RotatedFrom.Valid = true
	}
	return &key, nil
}
