package mocks

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// Ensure MockCredentialStore implements CredentialStore
var _ driven.CredentialStore = (*MockCredentialStore)(nil)

// MockCredentialStore is an in-memory CredentialStore keyed by
// (marketplace, profile). Stored values are cloned in and out.
type MockCredentialStore struct {
	mu    sync.RWMutex
	creds map[domain.CredentialKey]*domain.Credential

	// Custom behavior hooks (optional)
	GetErr        error
	UpsertErr     error
	UpdateErr     error
	DeactivateErr error

	UpsertCalls int
	UpdateCalls int
}

// NewMockCredentialStore creates a new MockCredentialStore
func NewMockCredentialStore() *MockCredentialStore {
	return &MockCredentialStore{
		creds: make(map[domain.CredentialKey]*domain.Credential),
	}
}

func (m *MockCredentialStore) Get(ctx context.Context, marketplace domain.Marketplace, profileName string) (*domain.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	c, ok := m.creds[domain.CredentialKey{Marketplace: marketplace, ProfileName: profileName}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (m *MockCredentialStore) Upsert(ctx context.Context, cred *domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpsertCalls++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}

	now := time.Now()
	key := cred.Key()
	if existing, ok := m.creds[key]; ok {
		cred.ID = existing.ID
		cred.CreatedAt = existing.CreatedAt
	} else {
		cred.ID = uuid.NewString()
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now
	m.creds[key] = cred.Clone()
	return nil
}

func (m *MockCredentialStore) UpdateTokens(ctx context.Context, cred *domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateCalls++
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	existing, ok := m.creds[cred.Key()]
	if !ok || !existing.IsActive || !existing.UpdatedAt.Equal(cred.UpdatedAt) {
		return domain.ErrCredentialChanged
	}

	updated := existing.Clone()
	updated.Secrets = maps.Clone(cred.Secrets)
	updated.ExpiresAt = cred.ExpiresAt
	updated.TokenType = cred.TokenType
	updated.Scopes = cred.Scopes
	updated.LastRefreshedAt = cred.LastRefreshedAt
	updated.UpdatedAt = time.Now()
	cred.UpdatedAt = updated.UpdatedAt
	m.creds[cred.Key()] = updated.Clone()
	return nil
}

func (m *MockCredentialStore) Deactivate(ctx context.Context, marketplace domain.Marketplace, profileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeactivateErr != nil {
		return m.DeactivateErr
	}
	c, ok := m.creds[domain.CredentialKey{Marketplace: marketplace, ProfileName: profileName}]
	if !ok {
		return domain.ErrNotFound
	}
	c.IsActive = false
	c.UpdatedAt = time.Now()
	return nil
}

func (m *MockCredentialStore) List(ctx context.Context) ([]*domain.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	out := make([]*domain.Credential, 0, len(m.creds))
	for _, c := range m.creds {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Marketplace != out[j].Marketplace {
			return out[i].Marketplace < out[j].Marketplace
		}
		return out[i].ProfileName < out[j].ProfileName
	})
	return out, nil
}

func (m *MockCredentialStore) Ping(ctx context.Context) error {
	return m.GetErr
}

// Put seeds a credential directly (for test setup).
func (m *MockCredentialStore) Put(cred *domain.Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	m.creds[cred.Key()] = cred.Clone()
}

// Count returns how many credentials are stored.
func (m *MockCredentialStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.creds)
}
