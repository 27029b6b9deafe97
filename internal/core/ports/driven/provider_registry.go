package driven

import "github.com/custodia-labs/marketlink/internal/core/domain"

// ProviderRegistry resolves the OAuth configuration for a marketplace.
type ProviderRegistry interface {
	// Provider returns a copy of the marketplace's configuration.
	// Returns domain.ErrInvalidInput for unknown marketplaces. The result is
	// not validated; callers that start a flow call Validate.
	Provider(marketplace domain.Marketplace) (*domain.ProviderConfig, error)

	// Providers returns the configuration of every supported marketplace.
	Providers() []*domain.ProviderConfig
}
