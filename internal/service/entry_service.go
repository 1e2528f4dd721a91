package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/tenant-dispatch/internal/compliance"
	"github.com/notifyhub/tenant-dispatch/internal/domain"
	"github.com/notifyhub/tenant-dispatch/internal/repository"
	"github.com/notifyhub/tenant-dispatch/internal/template"
)

// EntryService is the producer-facing API over the queue: create, list,
// inspect, stats. All insert-time rules (destination normalization, template
// rendering, segment accounting, idempotency) live here so every producer
// path enqueues identically shaped rows.
type EntryService struct {
	queue     repository.QueueRepository
	templates *template.Engine
	logger    *zap.Logger
	now       func() time.Time
}

func NewEntryService(queue repository.QueueRepository, templates *template.Engine, logger *zap.Logger) *EntryService {
	return &EntryService{
		queue:     queue,
		templates: templates,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and persists a single entry. With a ScheduledAt it lands
// in status scheduled; otherwise it stays pending until Schedule is called.
//
// Creation is never gated by opt-out: suppression is enforced at send time,
// so an entry created after a STOP is accepted here and skipped on claim.
//
// Idempotency: if idempotencyKey is set and an entry with that key already
// exists for the tenant, the existing entry is returned (isDuplicate=true).
func (s *EntryService) Create(
	ctx context.Context,
	tenantID string,
	req domain.CreateEntryRequest,
	idempotencyKey string,
) (*domain.QueueEntry, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	destination, err := compliance.NormalizeDestination(req.Channel, req.Destination)
	if err != nil {
		return nil, false, err
	}

	if idempotencyKey != "" {
		existing, err := s.queue.GetByIdempotencyKey(ctx, tenantID, idempotencyKey)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, false, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			return existing, true, nil // true = was a duplicate
		}
	}

	content := req.Content
	if content == "" {
		rendered, err := s.templates.Render(ctx, tenantID, req.NotificationType, req.Variables)
		if err != nil {
			return nil, false, err
		}
		content = rendered.Content
	} else if len(req.Variables) > 0 {
		content = template.Substitute(content, req.Variables)
	}

	// Segment accounting happens once, at insert time; downstream code
	// never recomputes it from raw strings.
	info := compliance.ComputeSegments(content)

	now := s.now()
	status := domain.StatusPending
	scheduledAt := req.ScheduledAt
	if scheduledAt != nil {
		status = domain.StatusScheduled
	}

	e := &domain.QueueEntry{
		ID:               uuid.New().String(),
		TenantID:         tenantID,
		Channel:          req.Channel,
		Destination:      destination,
		RecipientType:    req.RecipientType,
		RecipientID:      req.RecipientID,
		RecipientName:    req.RecipientName,
		NotificationType: req.NotificationType,
		Content:          content,
		ContentLength:    info.Length,
		SegmentCount:     info.SegmentCount,
		Status:           status,
		ScheduledAt:      scheduledAt,
		MaxAttempts:      domain.DefaultMaxAttempts,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if idempotencyKey != "" {
		e.IdempotencyKey = &idempotencyKey
	}

	if err := s.queue.Create(ctx, e); err != nil {
		return nil, false, fmt.Errorf("persist queue entry: %w", err)
	}
	return e, false, nil
}

// Schedule moves a pending entry to scheduled. No-op for any other status.
func (s *EntryService) Schedule(ctx context.Context, tenantID, id string, at *time.Time) error {
	when := s.now()
	if at != nil {
		when = *at
	}
	return s.queue.Schedule(ctx, tenantID, id, when)
}

func (s *EntryService) GetByID(ctx context.Context, tenantID, id string) (*domain.QueueEntry, error) {
	return s.queue.GetByID(ctx, tenantID, id)
}

func (s *EntryService) List(ctx context.Context, tenantID string, filter domain.ListFilter) ([]*domain.QueueEntry, int, error) {
	return s.queue.List(ctx, tenantID, filter)
}

func (s *EntryService) Stats(ctx context.Context, tenantID string) (*domain.QueueStats, error) {
	return s.queue.Stats(ctx, tenantID)
}
