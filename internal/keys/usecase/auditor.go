package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	keysDomain "github.com/phivault/phivault/internal/keys/domain"
	keysService "github.com/phivault/phivault/internal/keys/service"
)

// auditor implements the Auditor interface on top of the append-only usage
// log repository. Every record is signed before it is written so the log can
// be re-verified later.
//
// Audit failures are deliberately swallowed: losing a usage record must not
// turn a successful encryption into an error. Failures are logged at error
// level, rate limited so a broken log table cannot flood the logs.
type auditor struct {
	usageRepo UsageLogRepository
	signer    keysService.UsageSigner
	logger    *slog.Logger
	limiter   *rate.Limiter
}

// NewAuditor creates an Auditor backed by the given repository and signer.
func NewAuditor(
	usageRepo UsageLogRepository,
	signer keysService.UsageSigner,
	logger *slog.Logger,
) Auditor {
	return &auditor{
		usageRepo: usageRepo,
		signer:    signer,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Every(10*time.Second), 5),
	}
}

// Record writes one signed usage record. Never returns an error: a failed
// audit write is logged and dropped so the primary operation's result is
// unaffected.
func (a *auditor) Record(
	ctx context.Context,
	keyID uuid.UUID,
	op keysDomain.Operation,
	userID string,
	success bool,
) {
	record := &keysDomain.KeyUsageRecord{
		ID:        uuid.Must(uuid.NewV7()),
		KeyID:     keyID,
		Operation: op,
		UserID:    userID,
		Success:   success,
		CreatedAt: time.Now().UTC(),
	}

	signature, err := a.signer.Sign(record)
	if err != nil {
		a.logFailure(ctx, record, err)
		return
	}
	record.Signature = signature

	if err := a.usageRepo.Append(ctx, record); err != nil {
		a.logFailure(ctx, record, err)
	}
}

// Verify re-checks signatures for records created at or after the cutoff and
// returns the ones that fail.
func (a *auditor) Verify(
	ctx context.Context,
	since time.Time,
	limit int,
) ([]*keysDomain.KeyUsageRecord, error) {
	records, err := a.usageRepo.ListSince(ctx, since, limit)
	if err != nil {
		return nil, err
	}

	var tampered []*keysDomain.KeyUsageRecord
	for _, record := range records {
		if err := a.signer.Verify(record); err != nil {
			tampered = append(tampered, record)
		}
	}
	return tampered, nil
}

func (a *auditor) logFailure(ctx context.Context, record *keysDomain.KeyUsageRecord, err error) {
	if !a.limiter.Allow() {
		return
	}
	a.logger.ErrorContext(ctx, "failed to write key usage record",
		slog.String("key_id", record.KeyID.String()),
		slog.String("operation", string(record.Operation)),
		slog.String("user_id", record.UserID),
		slog.Bool("success", record.Success),
		slog.String("error", err.Error()),
	)
}
