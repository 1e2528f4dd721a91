package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
)

type pgTemplateRepository struct {
	pool *pgxpool.Pool
}

// NewPgTemplateRepository returns a TemplateRepository backed by PostgreSQL.
func NewPgTemplateRepository(pool *pgxpool.Pool) TemplateRepository {
	return &pgTemplateRepository{pool: pool}
}

func (r *pgTemplateRepository) GetByType(ctx context.Context, tenantID, notificationType string) (*domain.Template, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT tenant_id, notification_type, content, available_variables, is_default,
		       created_at, updated_at
		FROM templates WHERE tenant_id = $1 AND notification_type = $2`,
		tenantID, notificationType)

	var t domain.Template
	err := row.Scan(&t.TenantID, &t.NotificationType, &t.Content, &t.AvailableVariables,
		&t.IsDefault, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
