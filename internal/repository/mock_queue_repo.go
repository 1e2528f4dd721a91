package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
)

// MockQueueRepository is a hand-written, in-memory implementation of
// QueueRepository used in unit tests. No mock-generation library needed.
// The mutex makes ClaimDue atomic so concurrency properties hold here too.
type MockQueueRepository struct {
	mu      sync.RWMutex
	entries map[string]*domain.QueueEntry

	// Optional error overrides and a controllable clock for tests.
	CreateErr   error
	GetByIDErr  error
	ClaimDueErr error
	Now         func() time.Time
}

func NewMockQueueRepository() *MockQueueRepository {
	return &MockQueueRepository{
		entries: make(map[string]*domain.QueueEntry),
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *MockQueueRepository) Create(_ context.Context, e *domain.QueueEntry) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.IdempotencyKey != nil {
		for _, existing := range m.entries {
			if existing.TenantID == e.TenantID &&
				existing.IdempotencyKey != nil && *existing.IdempotencyKey == *e.IdempotencyKey {
				return domain.ErrConflict
			}
		}
	}
	clone := *e
	m.entries[e.ID] = &clone
	return nil
}

func (m *MockQueueRepository) GetByID(_ context.Context, tenantID, id string) (*domain.QueueEntry, error) {
	if m.GetByIDErr != nil {
		return nil, m.GetByIDErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok || e.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (m *MockQueueRepository) GetByIdempotencyKey(_ context.Context, tenantID, key string) (*domain.QueueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.TenantID == tenantID && e.IdempotencyKey != nil && *e.IdempotencyKey == key {
			clone := *e
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockQueueRepository) List(_ context.Context, tenantID string, f domain.ListFilter) ([]*domain.QueueEntry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.QueueEntry
	for _, e := range m.entries {
		if e.TenantID != tenantID {
			continue
		}
		if f.Status != nil && e.Status != *f.Status {
			continue
		}
		if f.Channel != nil && e.Channel != *f.Channel {
			continue
		}
		if f.Destination != nil && e.Destination != *f.Destination {
			continue
		}
		clone := *e
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, len(result), nil
}

func (m *MockQueueRepository) Schedule(_ context.Context, tenantID, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok && e.TenantID == tenantID && e.Status == domain.StatusPending {
		e.Status = domain.StatusScheduled
		e.ScheduledAt = &at
		e.UpdatedAt = m.Now()
	}
	return nil
}

func (m *MockQueueRepository) ClaimDue(_ context.Context, tenantID, claimID string, limit int) ([]*domain.QueueEntry, error) {
	if m.ClaimDueErr != nil {
		return nil, m.ClaimDueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()

	var due []*domain.QueueEntry
	for _, e := range m.entries {
		if e.TenantID == tenantID && e.Status == domain.StatusScheduled &&
			e.ScheduledAt != nil && !e.ScheduledAt.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(*due[j].ScheduledAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*domain.QueueEntry, 0, len(due))
	for _, e := range due {
		e.Status = domain.StatusProcessing
		cid := claimID
		e.ClaimID = &cid
		e.UpdatedAt = now
		clone := *e
		claimed = append(claimed, &clone)
	}
	return claimed, nil
}

func (m *MockQueueRepository) MarkSent(_ context.Context, tenantID, id, providerMessageID string, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok && e.TenantID == tenantID && e.Status == domain.StatusProcessing {
		e.Status = domain.StatusSent
		e.ProviderMessageID = &providerMessageID
		e.SentAt = &sentAt
		e.LastAttemptAt = &sentAt
		e.ClaimID = nil
		e.ErrorMessage = nil
		e.UpdatedAt = m.Now()
	}
	return nil
}

func (m *MockQueueRepository) MarkDelivered(_ context.Context, providerMessageID string, deliveredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ProviderMessageID != nil && *e.ProviderMessageID == providerMessageID && e.Status == domain.StatusSent {
			e.Status = domain.StatusDelivered
			e.DeliveredAt = &deliveredAt
			e.UpdatedAt = m.Now()
		}
	}
	return nil
}

func (m *MockQueueRepository) MarkFailed(_ context.Context, tenantID, id, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok && e.TenantID == tenantID && e.Status == domain.StatusProcessing {
		now := m.Now()
		e.Status = domain.StatusFailed
		e.Attempts++
		e.LastAttemptAt = &now
		e.ClaimID = nil
		e.ErrorMessage = &errMsg
		e.UpdatedAt = now
	}
	return nil
}

func (m *MockQueueRepository) MarkFailedPermanent(_ context.Context, tenantID, id, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok && e.TenantID == tenantID && e.Status == domain.StatusProcessing {
		now := m.Now()
		e.Status = domain.StatusFailed
		e.Attempts = e.MaxAttempts
		e.LastAttemptAt = &now
		e.ClaimID = nil
		e.ErrorMessage = &errMsg
		e.UpdatedAt = now
	}
	return nil
}

func (m *MockQueueRepository) MarkSkipped(_ context.Context, tenantID, id string, reason domain.SkipReason) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok && e.TenantID == tenantID && e.Status == domain.StatusProcessing {
		e.Status = domain.StatusSkipped
		e.SkipReason = &reason
		e.ClaimID = nil
		e.UpdatedAt = m.Now()
	}
	return nil
}

func (m *MockQueueRepository) MarkFailedByProviderID(_ context.Context, providerMessageID, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ProviderMessageID != nil && *e.ProviderMessageID == providerMessageID && e.Status == domain.StatusSent {
			e.Status = domain.StatusFailed
			e.Attempts = e.MaxAttempts
			e.ErrorMessage = &errMsg
			e.UpdatedAt = m.Now()
		}
	}
	return nil
}

func (m *MockQueueRepository) Release(_ context.Context, tenantID, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok && e.TenantID == tenantID && e.Status == domain.StatusProcessing {
		e.Status = domain.StatusScheduled
		e.ScheduledAt = &at
		e.ClaimID = nil
		e.UpdatedAt = m.Now()
	}
	return nil
}

func (m *MockQueueRepository) CancelPending(_ context.Context, tenantID, destination string, reason domain.SkipReason) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.entries {
		if e.TenantID == tenantID && e.Destination == destination &&
			(e.Status == domain.StatusPending || e.Status == domain.StatusScheduled) {
			e.Status = domain.StatusSkipped
			e.SkipReason = &reason
			e.UpdatedAt = m.Now()
			count++
		}
	}
	return count, nil
}

func (m *MockQueueRepository) ResetStale(_ context.Context, tenantID string, staleAfter time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	count := 0
	for _, e := range m.entries {
		if e.TenantID == tenantID && e.Status == domain.StatusProcessing &&
			e.UpdatedAt.Before(now.Add(-staleAfter)) {
			e.Status = domain.StatusScheduled
			e.ClaimID = nil
			e.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

func (m *MockQueueRepository) RetryEligible(_ context.Context, tenantID string, limit int) ([]*domain.QueueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.QueueEntry
	for _, e := range m.entries {
		if e.TenantID == tenantID && e.RetryEligible() {
			clone := *e
			result = append(result, &clone)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockQueueRepository) ScheduleRetry(_ context.Context, tenantID, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok && e.TenantID == tenantID && e.RetryEligible() {
		e.Status = domain.StatusScheduled
		e.ScheduledAt = &at
		e.ClaimID = nil
		e.UpdatedAt = m.Now()
	}
	return nil
}

func (m *MockQueueRepository) Stats(_ context.Context, tenantID string) (*domain.QueueStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &domain.QueueStats{ByStatus: map[domain.Status]int{}}
	cutoff := m.Now().Add(-24 * time.Hour)
	for _, e := range m.entries {
		if e.TenantID != tenantID {
			continue
		}
		stats.ByStatus[e.Status]++
		if (e.Status == domain.StatusSent || e.Status == domain.StatusDelivered) &&
			e.SentAt != nil && e.SentAt.After(cutoff) {
			stats.SentLast24h++
		}
		if e.Status == domain.StatusFailed && e.LastAttemptAt != nil && e.LastAttemptAt.After(cutoff) {
			stats.FailedLast24h++
		}
	}
	return stats, nil
}

func (m *MockQueueRepository) DailyCount(_ context.Context, tenantID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := m.Now().Add(-24 * time.Hour)
	count := 0
	for _, e := range m.entries {
		if e.TenantID == tenantID &&
			(e.Status == domain.StatusSent || e.Status == domain.StatusDelivered) &&
			e.SentAt != nil && e.SentAt.After(cutoff) {
			count++
		}
	}
	return count, nil
}

// Put inserts an entry directly, bypassing Create validation. Test helper.
func (m *MockQueueRepository) Put(e *domain.QueueEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *e
	m.entries[e.ID] = &clone
}

// Touch overwrites an entry's UpdatedAt. Test helper for stale-claim cases.
func (m *MockQueueRepository) Touch(id string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.UpdatedAt = at
	}
}
