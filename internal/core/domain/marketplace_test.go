package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseMarketplace(t *testing.T) {
	tests := []struct {
		in      string
		want    Marketplace
		wantErr bool
	}{
		{"etsy", MarketplaceEtsy, false},
		{" Joom ", MarketplaceJoom, false},
		{"SHOPIFY", MarketplaceShopify, false},
		{"ebay", MarketplaceEbay, false},
		{"invalid-marketplace", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMarketplace(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestProfileOrDefault(t *testing.T) {
	if ProfileOrDefault("") != DefaultProfileName {
		t.Error("expected default profile for empty name")
	}
	if ProfileOrDefault("  ") != DefaultProfileName {
		t.Error("expected default profile for blank name")
	}
	if ProfileOrDefault("eu-store") != "eu-store" {
		t.Error("expected profile name to pass through")
	}
}

func TestCredentialKeyString(t *testing.T) {
	k := CredentialKey{Marketplace: MarketplaceShopify, ProfileName: "main"}
	if k.String() != "shopify/main" {
		t.Errorf("unexpected key %s", k.String())
	}
}

func TestAuthorizationStateExpiry(t *testing.T) {
	now := time.Now()
	st := &AuthorizationState{CreatedAt: now, ExpiresAt: now.Add(DefaultAuthorizationStateTTL)}

	if st.IsExpired(now) {
		t.Error("fresh state must not be expired")
	}
	if !st.IsExpired(now.Add(DefaultAuthorizationStateTTL)) {
		t.Error("state must be expired at ExpiresAt")
	}
	if st.TTL(now) != DefaultAuthorizationStateTTL {
		t.Errorf("unexpected ttl %s", st.TTL(now))
	}
	if st.TTL(now.Add(time.Hour)) != 0 {
		t.Error("ttl must not go negative")
	}
}
