package processor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/tenant-dispatch/internal/repository"
)

// Runner ticks on an interval and runs a processing pass for every enabled
// tenant. Passes run concurrently, one goroutine per tenant, so one tenant's
// throttle or provider outage never delays another's. Each pass is isolated:
// a panic or error is logged and recorded without aborting the tick.
type Runner struct {
	proc     *Processor
	settings repository.SettingsRepository
	interval time.Duration
	logger   *zap.Logger
}

func NewRunner(
	proc *Processor,
	settings repository.SettingsRepository,
	interval time.Duration,
	logger *zap.Logger,
) *Runner {
	return &Runner{proc: proc, settings: settings, interval: interval, logger: logger}
}

// Run ticks every interval until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("processor runner started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("processor runner stopping")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one pass for every enabled tenant and waits for all to finish.
func (r *Runner) Tick(ctx context.Context) {
	tenants, err := r.settings.ListEnabled(ctx)
	if err != nil {
		r.logger.Error("list enabled tenants", zap.Error(err))
		return
	}

	var wg sync.WaitGroup
	for _, t := range tenants {
		wg.Add(1)
		go func(tenantID string) {
			defer wg.Done()
			r.runIsolated(ctx, tenantID)
		}(t.TenantID)
	}
	wg.Wait()
}

func (r *Runner) runIsolated(ctx context.Context, tenantID string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("processing pass panicked",
				zap.String("tenant_id", tenantID), zap.Any("panic", rec))
		}
	}()

	result, err := r.proc.RunPass(ctx, tenantID)
	if err != nil {
		// Infrastructure error: the pass aborts and is retried next tick;
		// claims are transactional so nothing is left half-claimed.
		r.logger.Error("processing pass failed",
			zap.String("tenant_id", tenantID), zap.Error(err))
		return
	}
	if result.Claimed > 0 {
		r.logger.Info("processing pass finished",
			zap.String("tenant_id", tenantID),
			zap.Int("claimed", result.Claimed),
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed),
			zap.Int("skipped", result.Skipped),
		)
	}
}
