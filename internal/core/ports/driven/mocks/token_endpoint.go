package mocks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// Ensure MockTokenEndpoint implements TokenEndpoint
var _ driven.TokenEndpoint = (*MockTokenEndpoint)(nil)

// MockTokenEndpoint records calls and delegates to optional hooks.
type MockTokenEndpoint struct {
	ExchangeFn func(provider *domain.ProviderConfig, req driven.CodeExchange) (*domain.TokenResult, error)
	RefreshFn  func(provider *domain.ProviderConfig, refreshToken string) (*domain.TokenResult, error)
	// RefreshCtxFn takes precedence over RefreshFn when set.
	RefreshCtxFn func(ctx context.Context, provider *domain.ProviderConfig, refreshToken string) (*domain.TokenResult, error)

	exchangeCalls atomic.Int32
	refreshCalls  atomic.Int32

	mu        sync.Mutex
	exchanges []driven.CodeExchange
	refreshes []string
}

// NewMockTokenEndpoint creates a new MockTokenEndpoint
func NewMockTokenEndpoint() *MockTokenEndpoint {
	return &MockTokenEndpoint{}
}

func (m *MockTokenEndpoint) ExchangeCode(ctx context.Context, provider *domain.ProviderConfig, req driven.CodeExchange) (*domain.TokenResult, error) {
	m.exchangeCalls.Add(1)
	m.mu.Lock()
	m.exchanges = append(m.exchanges, req)
	m.mu.Unlock()

	if m.ExchangeFn != nil {
		return m.ExchangeFn(provider, req)
	}
	exp := time.Now().Add(time.Hour)
	return &domain.TokenResult{AccessToken: "access-" + req.Code, RefreshToken: "refresh-" + req.Code, ExpiresAt: &exp}, nil
}

func (m *MockTokenEndpoint) Refresh(ctx context.Context, provider *domain.ProviderConfig, refreshToken string) (*domain.TokenResult, error) {
	m.refreshCalls.Add(1)
	m.mu.Lock()
	m.refreshes = append(m.refreshes, refreshToken)
	m.mu.Unlock()

	if m.RefreshCtxFn != nil {
		return m.RefreshCtxFn(ctx, provider, refreshToken)
	}
	if m.RefreshFn != nil {
		return m.RefreshFn(provider, refreshToken)
	}
	exp := time.Now().Add(time.Hour)
	return &domain.TokenResult{AccessToken: "refreshed-access", ExpiresAt: &exp}, nil
}

// ExchangeCalls returns how many code exchanges were attempted.
func (m *MockTokenEndpoint) ExchangeCalls() int { return int(m.exchangeCalls.Load()) }

// RefreshCalls returns how many refreshes were attempted.
func (m *MockTokenEndpoint) RefreshCalls() int { return int(m.refreshCalls.Load()) }

// LastExchange returns the most recent exchange request.
func (m *MockTokenEndpoint) LastExchange() driven.CodeExchange {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.exchanges) == 0 {
		return driven.CodeExchange{}
	}
	return m.exchanges[len(m.exchanges)-1]
}

// RefreshTokensSent returns the refresh tokens presented, in order.
func (m *MockTokenEndpoint) RefreshTokensSent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.refreshes...)
}
