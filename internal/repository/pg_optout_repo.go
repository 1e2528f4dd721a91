package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
)

type pgOptOutRepository struct {
	pool *pgxpool.Pool
}

// NewPgOptOutRepository returns an OptOutRepository backed by PostgreSQL.
func NewPgOptOutRepository(pool *pgxpool.Pool) OptOutRepository {
	return &pgOptOutRepository{pool: pool}
}

func (r *pgOptOutRepository) Upsert(ctx context.Context, rec *domain.OptOutRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO opt_outs (tenant_id, destination, method, context, recorded_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (tenant_id, destination)
		DO UPDATE SET method = EXCLUDED.method, context = EXCLUDED.context,
		              recorded_at = EXCLUDED.recorded_at`,
		rec.TenantID, rec.Destination, rec.Method, rec.Context, rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("upsert opt-out: %w", err)
	}
	return nil
}

func (r *pgOptOutRepository) Delete(ctx context.Context, tenantID, destination string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM opt_outs WHERE tenant_id = $1 AND destination = $2`, tenantID, destination)
	return err
}

func (r *pgOptOutRepository) Exists(ctx context.Context, tenantID, destination string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM opt_outs WHERE tenant_id = $1 AND destination = $2
		)`, tenantID, destination).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("opt-out lookup: %w", err)
	}
	return exists, nil
}

func (r *pgOptOutRepository) List(ctx context.Context, tenantID string) ([]*domain.OptOutRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tenant_id, destination, method, context, recorded_at
		FROM opt_outs WHERE tenant_id = $1 ORDER BY recorded_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list opt-outs: %w", err)
	}
	defer rows.Close()

	var result []*domain.OptOutRecord
	for rows.Next() {
		var rec domain.OptOutRecord
		if err := rows.Scan(&rec.TenantID, &rec.Destination, &rec.Method, &rec.Context, &rec.RecordedAt); err != nil {
			return nil, err
		}
		result = append(result, &rec)
	}
	return result, rows.Err()
}
