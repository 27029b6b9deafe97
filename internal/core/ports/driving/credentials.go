package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/marketlink/internal/core/domain"
)

// CredentialService manages the lifecycle of marketplace credentials:
// provisioning, the authorization code flow, refresh and deactivation.
type CredentialService interface {
	// ProvisionStatic stores caller-supplied secrets as the active credential.
	// Idempotent: the same input twice leaves one credential.
	ProvisionStatic(ctx context.Context, req ProvisionStaticRequest) (*domain.Credential, error)

	// BeginAuthorization records a single-use state and returns the
	// provider authorization URL.
	BeginAuthorization(ctx context.Context, req BeginAuthorizationRequest) (*AuthorizationResponse, error)

	// CompleteAuthorization consumes the state, exchanges the code and
	// stores the resulting tokens as the active credential.
	CompleteAuthorization(ctx context.Context, req CompleteAuthorizationRequest) (*domain.Credential, error)

	// EnsureFresh returns a credential whose access token is valid for at
	// least the safety margin, refreshing it if needed.
	EnsureFresh(ctx context.Context, marketplace domain.Marketplace, profileName string) (*domain.Credential, error)

	// HandleUnauthorized is called after a provider rejected rejectedAccessToken
	// with 401. It refreshes unless another caller already replaced the token.
	HandleUnauthorized(ctx context.Context, marketplace domain.Marketplace, profileName, rejectedAccessToken string) (*domain.Credential, error)

	// Refresh renews the access token now, regardless of its expiry.
	Refresh(ctx context.Context, marketplace domain.Marketplace, profileName string) (*domain.Credential, error)

	// Deactivate marks the credential inactive.
	Deactivate(ctx context.Context, marketplace domain.Marketplace, profileName string) error

	// Get returns a credential summary (no secrets).
	Get(ctx context.Context, marketplace domain.Marketplace, profileName string) (*domain.CredentialSummary, error)

	// List returns summaries of all stored credentials.
	List(ctx context.Context) ([]*domain.CredentialSummary, error)

	// Status reports provider configuration and credential health for every marketplace.
	Status(ctx context.Context) ([]*MarketplaceStatus, error)
}

// ProvisionStaticRequest stores API keys or pre-issued tokens.
// @Description Request to store static marketplace credentials
type ProvisionStaticRequest struct {
	Marketplace domain.Marketplace `json:"marketplace" example:"joom"`
	ProfileName string             `json:"profile_name,omitempty" example:"default"`

	// Secrets replaces the stored secret map (apiKey, accessToken, refreshToken, ...)
	Secrets map[string]string `json:"secrets"`

	// ExpiresAt is the access token expiry, omitted for non-expiring secrets.
	ExpiresAt *time.Time `json:"expires_at,omitempty" example:"2026-01-15T11:00:00Z"`
}

// MarketplaceStatus is the health of one marketplace integration.
// @Description Provider configuration and credential health
type MarketplaceStatus struct {
	Marketplace domain.Marketplace          `json:"marketplace" example:"etsy"`
	Configured  bool                        `json:"configured"`
	ConfigError string                      `json:"config_error,omitempty"`
	Status      domain.CredentialStatus     `json:"status" example:"healthy"`
	Credentials []*domain.CredentialSummary `json:"credentials"`
}
