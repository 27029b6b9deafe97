package domain

import (
	"fmt"
	"strings"
)

// Marketplace identifies a third-party marketplace integration
type Marketplace string

const (
	MarketplaceEtsy    Marketplace = "etsy"    // handmade-goods marketplace
	MarketplaceJoom    Marketplace = "joom"    // cross-border commerce platform
	MarketplaceShopify Marketplace = "shopify" // storefront platform
	MarketplaceEbay    Marketplace = "ebay"
)

// DefaultProfileName is used when a caller does not name a profile
const DefaultProfileName = "default"

// SupportedMarketplaces returns every marketplace with a provider definition.
func SupportedMarketplaces() []Marketplace {
	return []Marketplace{
		MarketplaceEtsy,
		MarketplaceJoom,
		MarketplaceShopify,
		MarketplaceEbay,
	}
}

// ParseMarketplace normalises s and rejects unknown marketplaces.
func ParseMarketplace(s string) (Marketplace, error) {
	m := Marketplace(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range SupportedMarketplaces() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown marketplace %q", ErrInvalidInput, s)
}

// EnvPrefix is the environment variable prefix for the marketplace, e.g. ETSY.
func (m Marketplace) EnvPrefix() string {
	return strings.ToUpper(string(m))
}

// ProfileOrDefault returns name, or DefaultProfileName when name is blank.
func ProfileOrDefault(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultProfileName
	}
	return name
}

// CredentialKey identifies the single credential slot for a marketplace profile.
type CredentialKey struct {
	Marketplace Marketplace
	ProfileName string
}

func (k CredentialKey) String() string {
	return string(k.Marketplace) + "/" + k.ProfileName
}
