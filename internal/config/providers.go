package config

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ProviderRegistry = (*Providers)(nil)

// Providers implements driven.ProviderRegistry from built-in defaults
// overlaid with <MARKETPLACE>_* environment variables.
type Providers struct {
	byMarketplace map[domain.Marketplace]*domain.ProviderConfig
}

// LoadProviders reads every supported marketplace's settings. Endpoints and
// scopes may be overridden; client credentials and redirect URI have no
// defaults.
func LoadProviders(lookup LookupFunc) *Providers {
	env := envReader{lookup: lookup}
	p := &Providers{byMarketplace: make(map[domain.Marketplace]*domain.ProviderConfig)}

	for _, m := range domain.SupportedMarketplaces() {
		cfg, _ := domain.ProviderDefaults(m)
		prefix := m.EnvPrefix()

		cfg.ClientID = env.get(prefix+"_CLIENT_ID", "")
		cfg.ClientSecret = env.get(prefix+"_CLIENT_SECRET", "")
		cfg.RedirectURI = env.get(prefix+"_REDIRECT_URI", "")
		cfg.AuthURL = env.get(prefix+"_AUTH_URL", cfg.AuthURL)
		cfg.TokenURL = env.get(prefix+"_TOKEN_URL", cfg.TokenURL)
		if cfg.RequiresShopDomain {
			cfg.ShopDomain = env.get(prefix+"_SHOP_DOMAIN", "")
		}
		if raw := env.get(prefix+"_SCOPES", ""); raw != "" {
			cfg.Scopes = splitScopes(raw)
		}

		p.byMarketplace[m] = &cfg
	}
	return p
}

// Provider returns a copy of the marketplace's configuration.
func (p *Providers) Provider(m domain.Marketplace) (*domain.ProviderConfig, error) {
	cfg, ok := p.byMarketplace[m]
	if !ok {
		return nil, fmt.Errorf("%w: unknown marketplace %q", domain.ErrInvalidInput, m)
	}
	out := *cfg
	out.Scopes = append([]string(nil), cfg.Scopes...)
	return &out, nil
}

// Providers returns copies in SupportedMarketplaces order.
func (p *Providers) Providers() []*domain.ProviderConfig {
	out := make([]*domain.ProviderConfig, 0, len(p.byMarketplace))
	for _, m := range domain.SupportedMarketplaces() {
		if cfg, err := p.Provider(m); err == nil {
			out = append(out, cfg)
		}
	}
	return out
}

// DefaultCallbacks fills a missing redirect URI with the marketplace's
// callback route under baseURL. An empty baseURL leaves providers unchanged.
func (p *Providers) DefaultCallbacks(baseURL string) {
	if baseURL == "" {
		return
	}
	for m, cfg := range p.byMarketplace {
		if cfg.RedirectURI == "" {
			cfg.RedirectURI = baseURL + "/api/v1/oauth/" + string(m) + "/callback"
		}
	}
}

// splitScopes accepts space or comma separated lists.
func splitScopes(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
