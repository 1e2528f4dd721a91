// Package optout maintains the per-tenant set of suppressed recipients and
// implements STOP/START keyword semantics, including the regulatory
// requirement that an opt-out cancels already-enqueued sends immediately.
package optout

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
	"github.com/notifyhub/tenant-dispatch/internal/repository"
)

type Registry struct {
	repo   repository.OptOutRepository
	queue  repository.QueueRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewRegistry(repo repository.OptOutRepository, queue repository.QueueRepository, logger *zap.Logger) *Registry {
	return &Registry{
		repo:   repo,
		queue:  queue,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Add records a suppression. Idempotent: re-adding overwrites method,
// context, and timestamp (last write wins).
func (r *Registry) Add(ctx context.Context, tenantID, destination string, method domain.OptOutMethod, note string) error {
	rec := &domain.OptOutRecord{
		TenantID:    tenantID,
		Destination: destination,
		Method:      method,
		Context:     note,
		RecordedAt:  r.now(),
	}
	if err := r.repo.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("record opt-out: %w", err)
	}
	return nil
}

// Remove deletes the suppression (re-opt-in). Previously skipped entries are
// not resurrected.
func (r *Registry) Remove(ctx context.Context, tenantID, destination string) error {
	return r.repo.Delete(ctx, tenantID, destination)
}

// IsOptedOut reports whether the destination is suppressed for this tenant.
// Absence means "may send", never "has opted in".
func (r *Registry) IsOptedOut(ctx context.Context, tenantID, destination string) (bool, error) {
	return r.repo.Exists(ctx, tenantID, destination)
}

func (r *Registry) List(ctx context.Context, tenantID string) ([]*domain.OptOutRecord, error) {
	return r.repo.List(ctx, tenantID)
}

// HandleStopKeyword records a keyword opt-out and immediately cancels every
// entry for that destination still in pending/scheduled, marking them skipped
// with reason recipient_opted_out. Opt-out takes effect now, not just for
// future sends.
func (r *Registry) HandleStopKeyword(ctx context.Context, tenantID, destination, originalMessage string) error {
	return r.Suppress(ctx, tenantID, destination, domain.OptOutMethodKeyword, originalMessage)
}

// Suppress is the shared opt-out path for keyword and administrative
// suppressions: record, then cancel queued sends.
func (r *Registry) Suppress(ctx context.Context, tenantID, destination string, method domain.OptOutMethod, note string) error {
	if err := r.Add(ctx, tenantID, destination, method, note); err != nil {
		return err
	}

	cancelled, err := r.queue.CancelPending(ctx, tenantID, destination, domain.SkipReasonOptedOut)
	if err != nil {
		return fmt.Errorf("cancel queued entries after opt-out: %w", err)
	}
	if cancelled > 0 {
		r.logger.Info("cancelled queued entries after opt-out",
			zap.String("tenant_id", tenantID),
			zap.String("destination", destination),
			zap.Int("cancelled", cancelled),
		)
	}
	return nil
}

// HandleStartKeyword removes the suppression.
func (r *Registry) HandleStartKeyword(ctx context.Context, tenantID, destination string) error {
	if err := r.repo.Delete(ctx, tenantID, destination); err != nil {
		return fmt.Errorf("remove opt-out: %w", err)
	}
	r.logger.Info("opt-out removed",
		zap.String("tenant_id", tenantID),
		zap.String("destination", destination),
	)
	return nil
}
