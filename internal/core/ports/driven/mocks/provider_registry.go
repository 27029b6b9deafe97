package mocks

import (
	"fmt"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// Ensure MockProviderRegistry implements ProviderRegistry
var _ driven.ProviderRegistry = (*MockProviderRegistry)(nil)

// MockProviderRegistry serves fixed provider configurations.
type MockProviderRegistry struct {
	providers map[domain.Marketplace]*domain.ProviderConfig
	order     []domain.Marketplace
}

// NewMockProviderRegistry registers the given providers.
func NewMockProviderRegistry(providers ...*domain.ProviderConfig) *MockProviderRegistry {
	r := &MockProviderRegistry{providers: make(map[domain.Marketplace]*domain.ProviderConfig)}
	for _, p := range providers {
		r.providers[p.Marketplace] = p
		r.order = append(r.order, p.Marketplace)
	}
	return r
}

func (r *MockProviderRegistry) Provider(m domain.Marketplace) (*domain.ProviderConfig, error) {
	p, ok := r.providers[m]
	if !ok {
		return nil, fmt.Errorf("%w: unknown marketplace %q", domain.ErrInvalidInput, m)
	}
	cp := *p
	cp.Scopes = append([]string(nil), p.Scopes...)
	return &cp, nil
}

func (r *MockProviderRegistry) Providers() []*domain.ProviderConfig {
	out := make([]*domain.ProviderConfig, 0, len(r.order))
	for _, m := range r.order {
		p, _ := r.Provider(m)
		out = append(out, p)
	}
	return out
}
