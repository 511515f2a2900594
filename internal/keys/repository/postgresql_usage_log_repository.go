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

// PostgreSQLUsageLogRepository implements append-only key usage persistence
// for PostgreSQL. Records are never updated or deleted.
type PostgreSQLUsageLogRepository struct {
	db *sql.DB
}

// NewPostgreSQLUsageLogRepository creates a new PostgreSQLUsageLogRepository.
func NewPostgreSQLUsageLogRepository(db *sql.DB) *PostgreSQLUsageLogRepository {
	return &PostgreSQLUsageLogRepository{db: db}
}

// Append inserts a usage record.
func (p *PostgreSQLUsageLogRepository) Append(
	ctx context.Context,
	record *keysDomain.KeyUsageRecord,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO key_usage_log (id, key_id, operation, user_id, success, signature, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	// A nil key ID marks a call that failed before any stored key was
	// resolved; it lands as NULL so the foreign key still holds.
	keyID := uuid.NullUUID{UUID: record.KeyID, Valid: record.KeyID != uuid.Nil}

	_, err := querier.ExecContext(
		ctx,
		query,
		record.ID,
		keyID,
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
func (p *PostgreSQLUsageLogRepository) CountByOperationSince(
	ctx context.Context,
	since time.Time,
) (map[keysDomain.Operation]int, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT operation, COUNT(*)
			  FROM key_usage_log
			  WHERE created_at >= $1
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
func (p *PostgreSQLUsageLogRepository) ListSince(
	ctx context.Context,
	since time.Time,
	limit int,
) ([]*keysDomain.KeyUsageRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, key_id, operation, user_id, success, signature, created_at
			  FROM key_usage_log
			  WHERE created_at >= $1
			  ORDER BY created_at ASC
			  LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list usage records")
	}
	defer rows.Close()

	var records []*keysDomain.KeyUsageRecord
	for rows.Next() {
		var record keysDomain.KeyUsageRecord
		var keyID uuid.NullUUID
		err := rows.Scan(
			&record.ID,
			&keyID,
			&record.Operation,
			&record.UserID,
			&record.Success,
			&record.Signature,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan usage record")
		}
		record.KeyID = keyID.UUID
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate usage records")
	}
	return records, nil
}
