package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// AuthStyle selects how client credentials reach the token endpoint
type AuthStyle string

const (
	AuthStyleParams AuthStyle = "params" // client_id/client_secret in the form body
	AuthStyleHeader AuthStyle = "header" // HTTP Basic authorization
)

// MissingExpiryPolicy decides ExpiresAt when a token response has no expires_in
type MissingExpiryPolicy string

const (
	// MissingExpiryNever stores the token as non-expiring
	MissingExpiryNever MissingExpiryPolicy = "never"
	// MissingExpiryImmediate stores the token as already expired so the next
	// EnsureFresh refreshes it
	MissingExpiryImmediate MissingExpiryPolicy = "immediate"
)

// ShopPlaceholder is substituted with the shop domain in per-shop endpoints
const ShopPlaceholder = "{shop}"

// ProviderConfig holds OAuth configuration for one marketplace
type ProviderConfig struct {
	Marketplace  Marketplace `json:"marketplace"`
	Name         string      `json:"name"`      // Display name
	AuthURL      string      `json:"auth_url"`  // may contain {shop}
	TokenURL     string      `json:"token_url"` // may contain {shop}
	ClientID     string      `json:"client_id"`
	ClientSecret string      `json:"-"` // never serialize
	RedirectURI  string      `json:"redirect_uri"`
	Scopes       []string    `json:"scopes"`

	// ScopeSeparator joins scopes in the authorization URL (default " ")
	ScopeSeparator string `json:"scope_separator,omitempty"`

	RequiresPKCE        bool                `json:"requires_pkce"`
	ConfidentialClient  bool                `json:"confidential_client"`
	AuthStyle           AuthStyle           `json:"auth_style"`
	MissingExpiryPolicy MissingExpiryPolicy `json:"missing_expiry_policy"`

	// RequiresShopDomain marks providers whose endpoints are per-shop
	RequiresShopDomain bool   `json:"requires_shop_domain"`
	ShopDomain         string `json:"shop_domain,omitempty"`

	// OpaqueRedirect marks providers whose redirect_uri is a registered
	// name rather than a URL (eBay RuName)
	OpaqueRedirect bool `json:"opaque_redirect,omitempty"`
}

// ProviderDefaults returns the built-in endpoints and flow settings for m.
// Client credentials and redirect URI always come from configuration.
func ProviderDefaults(m Marketplace) (ProviderConfig, bool) {
	switch m {
	case MarketplaceEtsy:
		return ProviderConfig{
			Marketplace:         m,
			Name:                "Etsy",
			AuthURL:             "https://www.etsy.com/oauth/connect",
			TokenURL:            "https://api.etsy.com/v3/public/oauth/token",
			Scopes:              []string{"listings_r", "listings_w", "shops_r"},
			RequiresPKCE:        true,
			AuthStyle:           AuthStyleParams,
			MissingExpiryPolicy: MissingExpiryImmediate,
		}, true
	case MarketplaceJoom:
		return ProviderConfig{
			Marketplace:         m,
			Name:                "Joom",
			AuthURL:             "https://api-merchant.joom.com/api/v2/oauth/authorize",
			TokenURL:            "https://api-merchant.joom.com/api/v2/oauth/access_token",
			ConfidentialClient:  true,
			AuthStyle:           AuthStyleParams,
			MissingExpiryPolicy: MissingExpiryImmediate,
		}, true
	case MarketplaceShopify:
		return ProviderConfig{
			Marketplace:         m,
			Name:                "Shopify",
			AuthURL:             "https://{shop}/admin/oauth/authorize",
			TokenURL:            "https://{shop}/admin/oauth/access_token",
			Scopes:              []string{"read_products", "write_products", "read_orders"},
			ScopeSeparator:      ",",
			ConfidentialClient:  true,
			AuthStyle:           AuthStyleParams,
			MissingExpiryPolicy: MissingExpiryNever, // offline tokens do not expire
			RequiresShopDomain:  true,
		}, true
	case MarketplaceEbay:
		return ProviderConfig{
			Marketplace:         m,
			Name:                "eBay",
			AuthURL:             "https://auth.ebay.com/oauth2/authorize",
			TokenURL:            "https://api.ebay.com/identity/v1/oauth2/token",
			Scopes:              []string{"https://api.ebay.com/oauth/api_scope", "https://api.ebay.com/oauth/api_scope/sell.inventory"},
			ConfidentialClient:  true,
			AuthStyle:           AuthStyleHeader,
			MissingExpiryPolicy: MissingExpiryImmediate,
			OpaqueRedirect:      true,
		}, true
	}
	return ProviderConfig{}, false
}

// Validate checks that the provider can run an authorization flow.
func (p *ProviderConfig) Validate() error {
	var missing []string
	prefix := p.Marketplace.EnvPrefix()
	if p.ClientID == "" {
		missing = append(missing, prefix+"_CLIENT_ID")
	}
	if p.ConfidentialClient && p.ClientSecret == "" {
		missing = append(missing, prefix+"_CLIENT_SECRET")
	}
	if p.RedirectURI == "" {
		missing = append(missing, prefix+"_REDIRECT_URI")
	}
	if p.AuthURL == "" {
		missing = append(missing, prefix+"_AUTH_URL")
	}
	if p.TokenURL == "" {
		missing = append(missing, prefix+"_TOKEN_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s: missing %s", ErrConfiguration, p.Marketplace, strings.Join(missing, ", "))
	}

	urls := []string{p.AuthURL, p.TokenURL}
	if !p.OpaqueRedirect {
		urls = append(urls, p.RedirectURI)
	}
	for _, raw := range urls {
		u, err := url.Parse(strings.ReplaceAll(raw, ShopPlaceholder, "shop"))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s: invalid url %q", ErrConfiguration, p.Marketplace, raw)
		}
	}
	return nil
}

// ForShop returns a copy with {shop} resolved. shop falls back to the
// configured ShopDomain.
func (p *ProviderConfig) ForShop(shop string) (*ProviderConfig, error) {
	out := *p
	out.Scopes = append([]string(nil), p.Scopes...)
	if !p.RequiresShopDomain {
		return &out, nil
	}
	if shop == "" {
		shop = p.ShopDomain
	}
	shop = strings.TrimSpace(shop)
	if shop == "" {
		return nil, fmt.Errorf("%w: %s: missing %s_SHOP_DOMAIN", ErrConfiguration, p.Marketplace, p.Marketplace.EnvPrefix())
	}
	if strings.ContainsAny(shop, "/?#@ ") {
		return nil, fmt.Errorf("%w: invalid shop domain %q", ErrInvalidInput, shop)
	}
	out.ShopDomain = shop
	out.AuthURL = strings.ReplaceAll(p.AuthURL, ShopPlaceholder, shop)
	out.TokenURL = strings.ReplaceAll(p.TokenURL, ShopPlaceholder, shop)
	return &out, nil
}

// Separator returns the scope separator, defaulting to a single space.
func (p *ProviderConfig) Separator() string {
	if p.ScopeSeparator == "" {
		return " "
	}
	return p.ScopeSeparator
}
