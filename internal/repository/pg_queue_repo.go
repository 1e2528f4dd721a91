package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
)

type pgQueueRepository struct {
	pool *pgxpool.Pool
}

// NewPgQueueRepository returns a QueueRepository backed by PostgreSQL.
func NewPgQueueRepository(pool *pgxpool.Pool) QueueRepository {
	return &pgQueueRepository{pool: pool}
}

const entryColumns = `id, tenant_id, channel, destination, recipient_type, recipient_id,
	recipient_name, notification_type, content, content_length, segment_count,
	status, scheduled_at, attempts, max_attempts, last_attempt_at, claim_id,
	sent_at, delivered_at, provider_message_id, skip_reason, error_message,
	idempotency_key, created_at, updated_at`

func (r *pgQueueRepository) Create(ctx context.Context, e *domain.QueueEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO queue_entries
			(id, tenant_id, channel, destination, recipient_type, recipient_id,
			 recipient_name, notification_type, content, content_length, segment_count,
			 status, scheduled_at, attempts, max_attempts, idempotency_key,
			 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		e.ID, e.TenantID, e.Channel, e.Destination, e.RecipientType, e.RecipientID,
		e.RecipientName, e.NotificationType, e.Content, e.ContentLength, e.SegmentCount,
		e.Status, e.ScheduledAt, e.Attempts, e.MaxAttempts, e.IdempotencyKey,
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "idempotency_key") {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert queue entry: %w", err)
	}
	return nil
}

func (r *pgQueueRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.QueueEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries WHERE tenant_id = $1 AND id = $2`, tenantID, id)

	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return e, err
}

func (r *pgQueueRepository) GetByIdempotencyKey(ctx context.Context, tenantID, key string) (*domain.QueueEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries WHERE tenant_id = $1 AND idempotency_key = $2`, tenantID, key)

	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return e, err
}

func (r *pgQueueRepository) List(ctx context.Context, tenantID string, f domain.ListFilter) ([]*domain.QueueEntry, int, error) {
	where, args := buildListWhere(tenantID, f)
	offset := (f.Page - 1) * f.Limit

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM queue_entries"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count queue entries: %w", err)
	}

	args = append(args, f.Limit, offset)
	query := fmt.Sprintf(`
		SELECT `+entryColumns+`
		FROM queue_entries%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list queue entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	return entries, total, err
}

func (r *pgQueueRepository) Schedule(ctx context.Context, tenantID, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE queue_entries
		SET status = 'scheduled', scheduled_at = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3 AND status = 'pending'`, at, tenantID, id)
	return err
}

// ClaimDue is the one place correctness depends on the storage layer's
// transactional guarantees: the subselect locks due rows with SKIP LOCKED so
// concurrent claimers never receive the same entry, and the outer UPDATE
// transitions them to processing in the same statement.
func (r *pgQueueRepository) ClaimDue(ctx context.Context, tenantID, claimID string, limit int) ([]*domain.QueueEntry, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE queue_entries
		SET status = 'processing', claim_id = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM queue_entries
			WHERE tenant_id = $2
			  AND status = 'scheduled'
			  AND scheduled_at <= NOW()
			ORDER BY scheduled_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+entryColumns, claimID, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING does not guarantee subselect order.
	sortByScheduledAt(entries)
	return entries, nil
}

func (r *pgQueueRepository) MarkSent(ctx context.Context, tenantID, id, providerMessageID string, sentAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE queue_entries
		SET status = 'sent', provider_message_id = $1, sent_at = $2,
		    last_attempt_at = $2, claim_id = NULL, error_message = NULL, updated_at = NOW()
		WHERE tenant_id = $3 AND id = $4 AND status = 'processing'`,
		providerMessageID, sentAt, tenantID, id)
	return err
}

func (r *pgQueueRepository) MarkDelivered(ctx context.Context, providerMessageID string, deliveredAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE queue_entries
		SET status = 'delivered', delivered_at = $1, updated_at = NOW()
		WHERE provider_message_id = $2 AND status = 'sent'`, deliveredAt, providerMessageID)
	return err
}

func (r *pgQueueRepository) MarkFailed(ctx context.Context, tenantID, id, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE queue_entries
		SET status = 'failed', attempts = attempts + 1, last_attempt_at = NOW(),
		    claim_id = NULL, error_message = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3 AND status = 'processing'`, errMsg, tenantID, id)
	return err
}

func (r *pgQueueRepository) MarkFailedPermanent(ctx context.Context, tenantID, id, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE queue_entries
		SET status = 'failed', attempts = max_attempts, last_attempt_at = NOW(),
		    claim_id = NULL, error_message = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3 AND status = 'processing'`, errMsg, tenantID, id)
	return err
}

func (r *pgQueueRepository) MarkSkipped(ctx context.Context, tenantID, id string, reason domain.SkipReason) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE queue_entries
		SET status = 'skipped', skip_reason = $1, claim_id = NULL, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3 AND status = 'processing'`, reason, tenantID, id)
	return err
}

func (r *pgQueueRepository) MarkFailedByProviderID(ctx context.Context, providerMessageID, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE queue_entries
		SET status = 'failed', attempts = max_attempts, error_message = $1, updated_at = NOW()
		WHERE provider_message_id = $2 AND status = 'sent'`, errMsg, providerMessageID)
	return err
}

func (r *pgQueueRepository) Release(ctx context.Context, tenantID, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE queue_entries
		SET status = 'scheduled', scheduled_at = $1, claim_id = NULL, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3 AND status = 'processing'`, at, tenantID, id)
	return err
}

func (r *pgQueueRepository) CancelPending(ctx context.Context, tenantID, destination string, reason domain.SkipReason) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE queue_entries
		SET status = 'skipped', skip_reason = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND destination = $3 AND status IN ('pending','scheduled')`,
		reason, tenantID, destination)
	if err != nil {
		return 0, fmt.Errorf("cancel pending entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgQueueRepository) ResetStale(ctx context.Context, tenantID string, staleAfter time.Duration) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE queue_entries
		SET status = 'scheduled', claim_id = NULL, updated_at = NOW()
		WHERE tenant_id = $1 AND status = 'processing'
		  AND updated_at < NOW() - $2::interval`,
		tenantID, fmt.Sprintf("%d seconds", int(staleAfter.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("reset stale claims: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgQueueRepository) RetryEligible(ctx context.Context, tenantID string, limit int) ([]*domain.QueueEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE tenant_id = $1 AND status = 'failed' AND attempts < max_attempts
		ORDER BY last_attempt_at ASC
		LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("find retry-eligible entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *pgQueueRepository) ScheduleRetry(ctx context.Context, tenantID, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE queue_entries
		SET status = 'scheduled', scheduled_at = $1, claim_id = NULL, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3
		  AND status = 'failed' AND attempts < max_attempts`, at, tenantID, id)
	return err
}

func (r *pgQueueRepository) Stats(ctx context.Context, tenantID string) (*domain.QueueStats, error) {
	stats := &domain.QueueStats{ByStatus: map[domain.Status]int{}}

	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM queue_entries
		WHERE tenant_id = $1 GROUP BY status`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status domain.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status IN ('sent','delivered') AND sent_at >= NOW() - INTERVAL '24 hours'),
			COUNT(*) FILTER (WHERE status = 'failed' AND last_attempt_at >= NOW() - INTERVAL '24 hours')
		FROM queue_entries WHERE tenant_id = $1`, tenantID).
		Scan(&stats.SentLast24h, &stats.FailedLast24h)
	if err != nil {
		return nil, fmt.Errorf("queue stats 24h: %w", err)
	}
	return stats, nil
}

func (r *pgQueueRepository) DailyCount(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM queue_entries
		WHERE tenant_id = $1
		  AND status IN ('sent','delivered')
		  AND sent_at >= NOW() - INTERVAL '24 hours'`, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("daily count: %w", err)
	}
	return count, nil
}

// ---- helpers ----

func scanEntry(row pgx.Row) (*domain.QueueEntry, error) {
	var e domain.QueueEntry
	err := row.Scan(
		&e.ID, &e.TenantID, &e.Channel, &e.Destination, &e.RecipientType, &e.RecipientID,
		&e.RecipientName, &e.NotificationType, &e.Content, &e.ContentLength, &e.SegmentCount,
		&e.Status, &e.ScheduledAt, &e.Attempts, &e.MaxAttempts, &e.LastAttemptAt, &e.ClaimID,
		&e.SentAt, &e.DeliveredAt, &e.ProviderMessageID, &e.SkipReason, &e.ErrorMessage,
		&e.IdempotencyKey, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEntries(rows pgx.Rows) ([]*domain.QueueEntry, error) {
	var result []*domain.QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func sortByScheduledAt(entries []*domain.QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].ScheduledAt, entries[j].ScheduledAt
		if a == nil || b == nil {
			return false
		}
		return a.Before(*b)
	})
}

// buildListWhere builds a parameterised WHERE clause from a ListFilter.
// tenant_id is always the first condition; scoping is not optional.
func buildListWhere(tenantID string, f domain.ListFilter) (string, []any) {
	conditions := []string{"tenant_id = $1"}
	args := []any{tenantID}

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.Channel != nil {
		add("channel = $%d", *f.Channel)
	}
	if f.Destination != nil {
		add("destination = $%d", *f.Destination)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}
