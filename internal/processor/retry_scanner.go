package processor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/tenant-dispatch/internal/repository"
)

// RetryScanner is the lower-frequency driver that moves retry-eligible
// failed entries back to scheduled with exponential backoff. Reschedule
// times are persisted, so retries survive restarts.
type RetryScanner struct {
	queue    repository.QueueRepository
	settings repository.SettingsRepository
	batch    int
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewRetryScanner(
	queue repository.QueueRepository,
	settings repository.SettingsRepository,
	batch int,
	interval time.Duration,
	logger *zap.Logger,
) *RetryScanner {
	return &RetryScanner{
		queue:    queue,
		settings: settings,
		batch:    batch,
		interval: interval,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run ticks every interval until ctx is cancelled.
func (rs *RetryScanner) Run(ctx context.Context) {
	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	rs.logger.Info("retry scanner started", zap.Duration("interval", rs.interval))

	for {
		select {
		case <-ctx.Done():
			rs.logger.Info("retry scanner stopping")
			return
		case <-ticker.C:
			rs.Tick(ctx)
		}
	}
}

// Tick reschedules retry-eligible entries for every enabled tenant.
func (rs *RetryScanner) Tick(ctx context.Context) {
	tenants, err := rs.settings.ListEnabled(ctx)
	if err != nil {
		rs.logger.Error("list enabled tenants", zap.Error(err))
		return
	}

	for _, t := range tenants {
		rs.scanTenant(ctx, t.TenantID)
	}
}

func (rs *RetryScanner) scanTenant(ctx context.Context, tenantID string) {
	entries, err := rs.queue.RetryEligible(ctx, tenantID, rs.batch)
	if err != nil {
		rs.logger.Error("find retry-eligible entries",
			zap.String("tenant_id", tenantID), zap.Error(err))
		return
	}

	rescheduled := 0
	for _, e := range entries {
		at := e.NextRetryAt(rs.now())
		if err := rs.queue.ScheduleRetry(ctx, tenantID, e.ID, at); err != nil {
			rs.logger.Error("schedule retry",
				zap.String("tenant_id", tenantID),
				zap.String("entry_id", e.ID), zap.Error(err))
			continue
		}
		rescheduled++
	}

	if rescheduled > 0 {
		rs.logger.Info("rescheduled failed entries",
			zap.String("tenant_id", tenantID), zap.Int("count", rescheduled))
	}
}
