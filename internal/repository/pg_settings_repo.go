package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
)

type pgSettingsRepository struct {
	pool *pgxpool.Pool
}

// NewPgSettingsRepository returns a SettingsRepository backed by PostgreSQL.
func NewPgSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &pgSettingsRepository{pool: pool}
}

const settingsColumns = `tenant_id, enabled, provider, sender_id,
	quiet_hours_enabled, quiet_hours_start, quiet_hours_end, quiet_hours_timezone,
	rate_limit_per_sec, daily_limit, health_status, created_at, updated_at`

func (r *pgSettingsRepository) Get(ctx context.Context, tenantID string) (*domain.TenantSettings, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+settingsColumns+`
		FROM tenant_settings WHERE tenant_id = $1`, tenantID)

	s, err := scanSettings(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

func (r *pgSettingsRepository) ListEnabled(ctx context.Context) ([]*domain.TenantSettings, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+settingsColumns+`
		FROM tenant_settings WHERE enabled = TRUE ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("list enabled tenants: %w", err)
	}
	defer rows.Close()

	var result []*domain.TenantSettings
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *pgSettingsRepository) TenantBySender(ctx context.Context, senderID string) (string, error) {
	var tenantID string
	err := r.pool.QueryRow(ctx,
		`SELECT tenant_id FROM tenant_settings WHERE sender_id = $1`, senderID).Scan(&tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrUnknownTenant
	}
	if err != nil {
		return "", fmt.Errorf("tenant by sender: %w", err)
	}
	return tenantID, nil
}

func scanSettings(row pgx.Row) (*domain.TenantSettings, error) {
	var s domain.TenantSettings
	err := row.Scan(
		&s.TenantID, &s.Enabled, &s.Provider, &s.SenderID,
		&s.QuietHours.Enabled, &s.QuietHours.Start, &s.QuietHours.End, &s.QuietHours.Timezone,
		&s.RateLimitPerSec, &s.DailyLimit, &s.HealthStatus, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
