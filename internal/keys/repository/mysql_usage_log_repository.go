package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/phivault/phivault/internal/database"
	apperrors "github.com/phivault/phivault/internal/errors"
	keysDomain "github.com/phivault/phivault/internal/keys/domain"
)

// MySQLUsageLogRepository implements append-only key usage persistence for
// MySQL. Records are never updated or deleted.
type MySQLUsageLogRepository struct {
	db *sql.DB
}

// NewMySQLUsageLogRepository creates a new MySQLUsageLogRepository.
func NewMySQLUsageLogRepository(db *sql.DB) *MySQLUsageLogRepository {
	return &MySQLUsageLogRepository{db: db}
}

// Append inserts a usage record.
func (m *MySQLUsageLogRepository) Append(
	ctx context.Context,
	record *keysDomain.KeyUsageRecord,
) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := record.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal record ID")
	}

	// A nil key ID marks a call that failed before any stored key was
	// resolved; it lands as NULL so the foreign key still holds.
	var keyIDBytes []byte
	if record.KeyID != uuid.Nil {
		keyIDBytes, err = record.KeyID.MarshalBinary()
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal key ID")
		}
	}

	query := `INSERT INTO key_usage_log (id, key_id, operation, user_id, success, signature, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		idBytes,
		keyIDBytes,
		record.Operation,
		record.UserID,
		record.Success,
		record.Signature,
		record.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to append usage record")
	}
	return nil
}

// CountByOperationSince returns per-operation record counts after the cutoff.
func (m *MySQLUsageLogRepository) CountByOperationSince(
	ctx context.Context,
	since time.Time,
) (map[keysDomain.Operation]int, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT operation, COUNT(*)
			  FROM key_usage_log
			  WHERE created_at >= ?
			  GROUP BY operation`

	rows, err := querier.QueryContext(ctx, query, since)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count usage records")
	}
	defer rows.Close()

	counts := make(map[keysDomain.Operation]int)
	for rows.Next() {
		var op keysDomain.Operation
		var count int
		if err := rows.Scan(&op, &count); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan usage count")
		}
		counts[op] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate usage counts")
	}
	return counts, nil
}

// ListSince returns up to limit records created at or after the cutoff,
// oldest first.
func (m *MySQLUsageLogRepository) ListSince(
	ctx context.Context,
	since time.Time,
	limit int,
) ([]*keysDomain.KeyUsageRecord, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, key_id, operation, user_id, success, signature, created_at
			  FROM key_usage_log
			  WHERE created_at >= ?
			  ORDER BY created_at ASC
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list usage records")
	}
	defer rows.Close()

	var records []*keysDomain.KeyUsageRecord
	for rows.Next() {
		var record keysDomain.KeyUsageRecord
		var idBytes, keyIDBytes []byte
		err := rows.Scan(
			&idBytes,
			&keyIDBytes,
			&record.Operation,
			&record.UserID,
			&record.Success,
			&record.Signature,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan usage record")
		}
		if err := record.ID.UnmarshalBinary(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal record ID")
		}
		if len(keyIDBytes) > 0 {
			if err := record.KeyID.UnmarshalBinary(keyIDBytes); err != nil {
				return nil, apperrors.Wrap(err, "failed to unmarshal key ID")
			}
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate usage records")
	}
	return records, nil
}
