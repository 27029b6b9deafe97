package driving

import (
	"time"

	"github.com/custodia-labs/marketlink/internal/core/domain"
)

// BeginAuthorizationRequest starts an authorization code flow.
// @Description Request to start a marketplace OAuth authorization flow
type BeginAuthorizationRequest struct {
	// Marketplace is the integration to authorize (etsy, joom, shopify, ebay)
	Marketplace domain.Marketplace `json:"marketplace" example:"etsy"`

	// ProfileName selects the credential slot. Defaults to "default".
	ProfileName string `json:"profile_name,omitempty" example:"default"`

	// RedirectURI overrides the configured callback URL.
	RedirectURI string `json:"redirect_uri,omitempty" example:"https://app.example.com/api/v1/oauth/callback"`

	// Scopes overrides the configured scopes. Order is preserved.
	Scopes []string `json:"scopes,omitempty" example:"listings_r,shops_r"`

	// ShopDomain is required by per-shop providers when not configured.
	ShopDomain string `json:"shop_domain,omitempty" example:"acme.myshopify.com"`
}

// AuthorizationResponse contains the URL the user must visit.
// @Description Response containing the provider authorization URL
type AuthorizationResponse struct {
	AuthorizationURL string    `json:"authorization_url" example:"https://www.etsy.com/oauth/connect?client_id=..."`
	State            string    `json:"state" example:"q8Xr1...base64url"`
	ExpiresAt        time.Time `json:"expires_at" example:"2026-01-15T10:10:00Z"`
}

// CompleteAuthorizationRequest carries the provider redirect parameters.
// @Description OAuth callback parameters from the provider redirect
type CompleteAuthorizationRequest struct {
	// Marketplace is optional on the shared callback; when set it must match
	// the marketplace the state was issued for.
	Marketplace domain.Marketplace `json:"marketplace,omitempty" example:"etsy"`

	Code  string `json:"code" example:"abc123"`
	State string `json:"state" example:"q8Xr1...base64url"`

	// Error is set when the provider reports a failed consent.
	Error            string `json:"error,omitempty" example:"access_denied"`
	ErrorDescription string `json:"error_description,omitempty" example:"The user denied access"`
}

// OAuthError is an error reported by the provider on the redirect.
type OAuthError struct {
	Code        string `json:"error" example:"access_denied"`
	Description string `json:"error_description,omitempty" example:"The user denied access"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}
