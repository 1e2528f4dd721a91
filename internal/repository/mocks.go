package repository

import (
	"context"
	"sync"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
)

// MockSettingsRepository is an in-memory SettingsRepository for tests.
type MockSettingsRepository struct {
	mu       sync.RWMutex
	tenants  map[string]*domain.TenantSettings
	bySender map[string]string

	GetErr error
}

func NewMockSettingsRepository() *MockSettingsRepository {
	return &MockSettingsRepository{
		tenants:  make(map[string]*domain.TenantSettings),
		bySender: make(map[string]string),
	}
}

func (m *MockSettingsRepository) Put(s *domain.TenantSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *s
	m.tenants[s.TenantID] = &clone
	if s.SenderID != "" {
		m.bySender[s.SenderID] = s.TenantID
	}
}

func (m *MockSettingsRepository) Get(_ context.Context, tenantID string) (*domain.TenantSettings, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.tenants[tenantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (m *MockSettingsRepository) ListEnabled(_ context.Context) ([]*domain.TenantSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.TenantSettings
	for _, s := range m.tenants {
		if s.Enabled {
			clone := *s
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (m *MockSettingsRepository) TenantBySender(_ context.Context, senderID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tenantID, ok := m.bySender[senderID]
	if !ok {
		return "", domain.ErrUnknownTenant
	}
	return tenantID, nil
}

// MockOptOutRepository is an in-memory OptOutRepository for tests.
type MockOptOutRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.OptOutRecord

	ExistsErr error
}

func NewMockOptOutRepository() *MockOptOutRepository {
	return &MockOptOutRepository{records: make(map[string]*domain.OptOutRecord)}
}

func optOutKey(tenantID, destination string) string {
	return tenantID + "|" + destination
}

func (m *MockOptOutRepository) Upsert(_ context.Context, rec *domain.OptOutRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *rec
	m.records[optOutKey(rec.TenantID, rec.Destination)] = &clone
	return nil
}

func (m *MockOptOutRepository) Delete(_ context.Context, tenantID, destination string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, optOutKey(tenantID, destination))
	return nil
}

func (m *MockOptOutRepository) Exists(_ context.Context, tenantID, destination string) (bool, error) {
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[optOutKey(tenantID, destination)]
	return ok, nil
}

func (m *MockOptOutRepository) List(_ context.Context, tenantID string) ([]*domain.OptOutRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.OptOutRecord
	for _, rec := range m.records {
		if rec.TenantID == tenantID {
			clone := *rec
			result = append(result, &clone)
		}
	}
	return result, nil
}

// MockTemplateRepository is an in-memory TemplateRepository for tests.
type MockTemplateRepository struct {
	mu        sync.RWMutex
	templates map[string]*domain.Template
}

func NewMockTemplateRepository() *MockTemplateRepository {
	return &MockTemplateRepository{templates: make(map[string]*domain.Template)}
}

func (m *MockTemplateRepository) Put(t *domain.Template) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *t
	m.templates[t.TenantID+"|"+t.NotificationType] = &clone
}

func (m *MockTemplateRepository) GetByType(_ context.Context, tenantID, notificationType string) (*domain.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[tenantID+"|"+notificationType]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *t
	return &clone, nil
}
