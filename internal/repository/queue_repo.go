package repository

import (
	"context"
	"time"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
)

// QueueRepository defines all persistence operations for queue entries.
// Every operation is tenant-scoped except MarkDelivered, whose callers
// (delivery callbacks) only carry the provider's message identifier.
// The pgx implementation is in pg_queue_repo.go; tests use a hand-written
// in-memory mock (mock_queue_repo.go) that preserves claim atomicity.
type QueueRepository interface {
	Create(ctx context.Context, e *domain.QueueEntry) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.QueueEntry, error)
	GetByIdempotencyKey(ctx context.Context, tenantID, key string) (*domain.QueueEntry, error)
	List(ctx context.Context, tenantID string, filter domain.ListFilter) ([]*domain.QueueEntry, int, error)

	// Schedule moves a pending entry to scheduled. Entries in any other
	// status are left untouched without error.
	Schedule(ctx context.Context, tenantID, id string, at time.Time) error

	// ClaimDue atomically claims up to limit due scheduled entries,
	// oldest scheduledAt first, marking them processing with claimID set.
	// Concurrent callers partition the due set disjointly.
	ClaimDue(ctx context.Context, tenantID, claimID string, limit int) ([]*domain.QueueEntry, error)

	// MarkSent records a successful dispatch. Conditional on status=processing.
	MarkSent(ctx context.Context, tenantID, id, providerMessageID string, sentAt time.Time) error
	// MarkDelivered applies an asynchronous delivery confirmation, looked up
	// by provider message id. Conditional on status=sent so late callbacks
	// cannot resurrect a retried or failed entry.
	MarkDelivered(ctx context.Context, providerMessageID string, deliveredAt time.Time) error
	// MarkFailed increments attempts, records the error, and clears the claim.
	MarkFailed(ctx context.Context, tenantID, id, errMsg string) error
	// MarkFailedPermanent additionally forces attempts to maxAttempts so the
	// entry is terminal immediately (provider said retrying is pointless).
	MarkFailedPermanent(ctx context.Context, tenantID, id, errMsg string) error
	// MarkSkipped records a compliance skip. Attempts is not incremented.
	MarkSkipped(ctx context.Context, tenantID, id string, reason domain.SkipReason) error
	// MarkFailedByProviderID applies an asynchronous terminal failure
	// callback. Conditional on status=sent.
	MarkFailedByProviderID(ctx context.Context, providerMessageID, errMsg string) error

	// Release reverts a claimed entry to scheduled at the given time,
	// clearing the claim without touching attempts. Used when a pass cannot
	// deliver an entry for a condition that resolves on its own, such as a
	// quiet-hours window opening mid-batch. Conditional on status=processing.
	Release(ctx context.Context, tenantID, id string, at time.Time) error

	// CancelPending skips every pending/scheduled entry for a destination.
	// Used by STOP handling: opt-out takes effect immediately.
	CancelPending(ctx context.Context, tenantID, destination string, reason domain.SkipReason) (int, error)

	// ResetStale reverts entries stuck in processing longer than
	// staleAfter back to scheduled, clearing their claim. Returns the count.
	ResetStale(ctx context.Context, tenantID string, staleAfter time.Duration) (int, error)

	RetryEligible(ctx context.Context, tenantID string, limit int) ([]*domain.QueueEntry, error)
	// ScheduleRetry moves a retry-eligible failed entry back to scheduled
	// at the given time. No-op if the entry is no longer retry-eligible.
	ScheduleRetry(ctx context.Context, tenantID, id string, at time.Time) error

	Stats(ctx context.Context, tenantID string) (*domain.QueueStats, error)
	// DailyCount counts sent/delivered entries with sentAt in the last 24h.
	DailyCount(ctx context.Context, tenantID string) (int, error)
}

// SettingsRepository reads per-tenant delivery configuration.
type SettingsRepository interface {
	Get(ctx context.Context, tenantID string) (*domain.TenantSettings, error)
	ListEnabled(ctx context.Context) ([]*domain.TenantSettings, error)
	// TenantBySender routes an inbound message to the tenant whose
	// provisioned sender number/address matches.
	TenantBySender(ctx context.Context, senderID string) (string, error)
}

// OptOutRepository persists (tenant, destination) suppressions.
type OptOutRepository interface {
	Upsert(ctx context.Context, rec *domain.OptOutRecord) error
	Delete(ctx context.Context, tenantID, destination string) error
	Exists(ctx context.Context, tenantID, destination string) (bool, error)
	List(ctx context.Context, tenantID string) ([]*domain.OptOutRecord, error)
}

// TemplateRepository reads per-tenant templates. Template authoring is
// handled by collaborators outside this core, so the core only reads.
type TemplateRepository interface {
	GetByType(ctx context.Context, tenantID, notificationType string) (*domain.Template, error)
}
