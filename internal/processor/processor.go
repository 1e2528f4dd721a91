// Package processor drives delivery: it claims due queue entries for one
// tenant at a time, gates each entry through compliance, dispatches to the
// provider at the tenant's rate, and records every outcome.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/tenant-dispatch/internal/cache"
	"github.com/notifyhub/tenant-dispatch/internal/compliance"
	"github.com/notifyhub/tenant-dispatch/internal/domain"
	"github.com/notifyhub/tenant-dispatch/internal/optout"
	"github.com/notifyhub/tenant-dispatch/internal/provider"
	"github.com/notifyhub/tenant-dispatch/internal/ratelimiter"
	"github.com/notifyhub/tenant-dispatch/internal/repository"
)

// Hooks carries the metric callback functions injected by main.
// Using a struct keeps the processor constructor signature clean.
type Hooks struct {
	OnSent       func(channel domain.Channel, latency time.Duration)
	OnFailed     func(channel domain.Channel)
	OnSkipped    func(reason domain.SkipReason)
	OnStaleReset func(count int)
	OnPassDone   func(d time.Duration)
}

func (h *Hooks) fill() {
	if h.OnSent == nil {
		h.OnSent = func(domain.Channel, time.Duration) {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func(domain.Channel) {}
	}
	if h.OnSkipped == nil {
		h.OnSkipped = func(domain.SkipReason) {}
	}
	if h.OnStaleReset == nil {
		h.OnStaleReset = func(int) {}
	}
	if h.OnPassDone == nil {
		h.OnPassDone = func(time.Duration) {}
	}
}

// PassResult aggregates one per-tenant processing pass.
type PassResult struct {
	TenantID    string   `json:"tenant_id"`
	Claimed     int      `json:"claimed"`
	Sent        int      `json:"sent"`
	Failed      int      `json:"failed"`
	Skipped     int      `json:"skipped"`
	Errors      []string `json:"errors,omitempty"`
	StaleResets int      `json:"stale_resets"`
}

// Processor runs per-tenant passes. Multiple processors (or overlapping
// invocations of one) may run concurrently, including for the same tenant:
// ClaimDue partitions the due set, so exclusivity never depends on anything
// held in process memory.
type Processor struct {
	queue     repository.QueueRepository
	settings  repository.SettingsRepository
	optouts   *optout.Registry
	providers provider.Resolver
	limiter   *ratelimiter.TenantLimiters
	daily     *cache.DailyCounter

	batchSize  int
	staleAfter time.Duration

	logger *zap.Logger
	hooks  Hooks

	// now is injectable for quiet-hours and backoff tests.
	now func() time.Time
}

func New(
	queue repository.QueueRepository,
	settings repository.SettingsRepository,
	optouts *optout.Registry,
	providers provider.Resolver,
	limiter *ratelimiter.TenantLimiters,
	daily *cache.DailyCounter,
	batchSize int,
	staleAfter time.Duration,
	logger *zap.Logger,
	hooks Hooks,
) *Processor {
	hooks.fill()
	return &Processor{
		queue:      queue,
		settings:   settings,
		optouts:    optouts,
		providers:  providers,
		limiter:    limiter,
		daily:      daily,
		batchSize:  batchSize,
		staleAfter: staleAfter,
		logger:     logger,
		hooks:      hooks,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the processor's clock. Tests only.
func (p *Processor) SetNow(now func() time.Time) { p.now = now }

// RunPass executes one processing pass for one tenant. A disabled tenant,
// quiet hours, or a reached daily limit each end the pass immediately
// without error: entries stay scheduled for a later pass.
func (p *Processor) RunPass(ctx context.Context, tenantID string) (*PassResult, error) {
	start := time.Now()
	defer func() { p.hooks.OnPassDone(time.Since(start)) }()

	result := &PassResult{TenantID: tenantID}
	log := p.logger.With(zap.String("tenant_id", tenantID))

	settings, err := p.settings.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return result, nil
		}
		return nil, fmt.Errorf("load tenant settings: %w", err)
	}
	if !settings.Enabled {
		return result, nil
	}

	now := p.now()
	if compliance.IsQuietHours(settings.QuietHours, now) {
		log.Debug("quiet hours active, pass skipped",
			zap.Time("next_allowed", compliance.NextAllowedSendTime(settings.QuietHours, now)))
		return result, nil
	}

	if settings.DailyLimit > 0 {
		count, err := p.daily.Count(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("daily count: %w", err)
		}
		if count >= settings.DailyLimit {
			log.Info("daily limit reached, pass skipped",
				zap.Int("count", count), zap.Int("limit", settings.DailyLimit))
			return result, nil
		}
	}

	reset, err := p.queue.ResetStale(ctx, tenantID, p.staleAfter)
	if err != nil {
		return nil, fmt.Errorf("reset stale claims: %w", err)
	}
	if reset > 0 {
		result.StaleResets = reset
		p.hooks.OnStaleReset(reset)
		log.Warn("reset stale claims", zap.Int("count", reset))
	}

	claimID := uuid.New().String()
	entries, err := p.queue.ClaimDue(ctx, tenantID, claimID, p.batchSize)
	if err != nil {
		return nil, fmt.Errorf("claim due entries: %w", err)
	}
	result.Claimed = len(entries)
	if len(entries) == 0 {
		return result, nil
	}

	log.Info("claimed due entries", zap.String("claim_id", claimID), zap.Int("count", len(entries)))

	for _, e := range entries {
		if ctx.Err() != nil {
			// Shutdown mid-batch: remaining claimed entries are recovered
			// by the next pass's stale reset.
			break
		}
		p.processEntry(ctx, settings, e, result, log)
	}

	return result, nil
}

func (p *Processor) processEntry(
	ctx context.Context,
	settings *domain.TenantSettings,
	e *domain.QueueEntry,
	result *PassResult,
	log *zap.Logger,
) {
	log = log.With(zap.String("entry_id", e.ID), zap.String("channel", string(e.Channel)))

	optedOut, err := p.optouts.IsOptedOut(ctx, e.TenantID, e.Destination)
	if err != nil {
		// The suppression check is mandatory before every send; when it
		// cannot be answered the entry must not be sent, but the registry
		// being unreachable is no verdict on the entry either. Leaving it
		// in processing hands it to stale reset, so the retry budget is
		// spent only on real delivery attempts.
		log.Error("opt-out lookup failed, leaving entry for stale reset", zap.Error(err))
		result.Errors = append(result.Errors, fmt.Sprintf("%s: opt-out lookup: %v", e.ID, err))
		return
	}

	perm := compliance.EvaluateSendPermission(settings, e.Channel, e.Destination, optedOut, p.now())
	if !perm.CanSend {
		if perm.Reason == domain.SkipReasonQuietHours {
			// The window opened between the pass-level gate and this entry.
			// Quiet hours end on their own, so the entry goes back to
			// scheduled for the window's close instead of a terminal skip.
			at := p.now()
			if perm.RetryAfter != nil {
				at = *perm.RetryAfter
			}
			if err := p.queue.Release(ctx, e.TenantID, e.ID, at); err != nil {
				log.Error("failed to release entry for quiet hours", zap.Error(err))
				result.Errors = append(result.Errors, fmt.Sprintf("%s: release: %v", e.ID, err))
				return
			}
			log.Info("entry released until quiet hours end", zap.Time("scheduled_at", at))
			return
		}
		if err := p.queue.MarkSkipped(ctx, e.TenantID, e.ID, perm.Reason); err != nil {
			log.Error("failed to mark entry skipped", zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: mark skipped: %v", e.ID, err))
			return
		}
		result.Skipped++
		p.hooks.OnSkipped(perm.Reason)
		log.Info("entry skipped", zap.String("reason", string(perm.Reason)))
		return
	}

	prov, err := p.providers.For(e.TenantID, settings.Provider)
	if err != nil {
		p.recordFailure(ctx, e, fmt.Errorf("resolve provider: %w", err), false, result, log)
		return
	}

	// Token-bucket spacing: respects the tenant's provider-side and
	// regulatory per-second cap without blocking other tenants' passes.
	if err := p.limiter.Wait(ctx, e.TenantID, settings.RateLimitPerSec); err != nil {
		return // ctx cancelled while waiting
	}

	sendStart := time.Now()
	res, err := prov.Send(ctx, provider.SendRequest{
		TenantID:    e.TenantID,
		Channel:     e.Channel,
		Destination: e.Destination,
		Content:     e.Content,
		ClientRef:   e.ID,
	})
	if err != nil {
		p.recordFailure(ctx, e, err, provider.IsPermanent(err), result, log)
		return
	}

	if err := p.queue.MarkSent(ctx, e.TenantID, e.ID, res.MessageID, p.now()); err != nil {
		log.Error("failed to mark entry sent", zap.Error(err))
		result.Errors = append(result.Errors, fmt.Sprintf("%s: mark sent: %v", e.ID, err))
		return
	}
	result.Sent++
	p.daily.Incr(ctx, e.TenantID)
	p.hooks.OnSent(e.Channel, time.Since(sendStart))
	log.Info("entry sent",
		zap.String("provider_message_id", res.MessageID),
		zap.Duration("latency", time.Since(sendStart)),
	)
}

func (p *Processor) recordFailure(
	ctx context.Context,
	e *domain.QueueEntry,
	sendErr error,
	permanent bool,
	result *PassResult,
	log *zap.Logger,
) {
	mark := p.queue.MarkFailed
	if permanent {
		mark = p.queue.MarkFailedPermanent
	}
	if err := mark(ctx, e.TenantID, e.ID, sendErr.Error()); err != nil {
		log.Error("failed to mark entry failed", zap.Error(err))
		result.Errors = append(result.Errors, fmt.Sprintf("%s: mark failed: %v", e.ID, err))
		return
	}
	result.Failed++
	result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", e.ID, sendErr))
	p.hooks.OnFailed(e.Channel)
	log.Warn("entry send failed",
		zap.Error(sendErr),
		zap.Bool("permanent", permanent),
		zap.Int("attempts", e.Attempts+1),
	)
}
