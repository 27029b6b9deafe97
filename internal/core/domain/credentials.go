package domain

import (
	"slices"
	"time"
)

// Well-known keys of Credential.Secrets
const (
	SecretAPIKey       = "apiKey"
	SecretClientID     = "clientId"
	SecretClientSecret = "clientSecret"
	SecretAccessToken  = "accessToken"
	SecretRefreshToken = "refreshToken"
	SecretShopDomain   = "shopDomain"
)

// DefaultRefreshSafetyMargin is how long before expiry a token is treated as stale
const DefaultRefreshSafetyMargin = 60 * time.Second

// Credential is the stored authentication material for one marketplace profile.
// There is at most one credential per (Marketplace, ProfileName); it is updated
// in place and never hard-deleted.
type Credential struct {
	ID          string      `json:"id"`
	Marketplace Marketplace `json:"marketplace"`
	ProfileName string      `json:"profile_name"`

	// Secrets is encrypted at rest and never serialized
	Secrets map[string]string `json:"-"`

	IsActive  bool       `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"` // nil means non-expiring

	// Token metadata (non-secret)
	TokenType string   `json:"token_type,omitempty"`
	Scopes    []string `json:"scopes,omitempty"`

	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty"`
}

// Key returns the credential's identity within the store.
func (c *Credential) Key() CredentialKey {
	return CredentialKey{Marketplace: c.Marketplace, ProfileName: c.ProfileName}
}

// Secret returns a secret value or the empty string.
func (c *Credential) Secret(key string) string {
	if c.Secrets == nil {
		return ""
	}
	return c.Secrets[key]
}

// AccessToken returns the current access token
func (c *Credential) AccessToken() string { return c.Secret(SecretAccessToken) }

// RefreshToken returns the current refresh token
func (c *Credential) RefreshToken() string { return c.Secret(SecretRefreshToken) }

// IsExpired reports whether ExpiresAt has passed.
func (c *Credential) IsExpired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Before(*c.ExpiresAt)
}

// NeedsRefresh reports whether the token expires within margin of now.
// Non-expiring credentials never need a refresh.
func (c *Credential) NeedsRefresh(now time.Time, margin time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Add(margin).Before(*c.ExpiresAt)
}

// Clone returns a deep copy so callers can mutate secrets safely.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	if c.Secrets != nil {
		out.Secrets = make(map[string]string, len(c.Secrets))
		for k, v := range c.Secrets {
			out.Secrets[k] = v
		}
	}
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		out.ExpiresAt = &t
	}
	if c.LastRefreshedAt != nil {
		t := *c.LastRefreshedAt
		out.LastRefreshedAt = &t
	}
	if c.Scopes != nil {
		out.Scopes = append([]string(nil), c.Scopes...)
	}
	return &out
}

// CredentialStatus is the health of a credential as seen by operators
type CredentialStatus string

const (
	CredentialStatusHealthy      CredentialStatus = "healthy"
	CredentialStatusExpiring     CredentialStatus = "expiring"
	CredentialStatusExpired      CredentialStatus = "expired"
	CredentialStatusInactive     CredentialStatus = "inactive"
	CredentialStatusUnconfigured CredentialStatus = "unconfigured"
)

// Status classifies the credential at now.
func (c *Credential) Status(now time.Time, margin time.Duration) CredentialStatus {
	switch {
	case !c.IsActive:
		return CredentialStatusInactive
	case c.IsExpired(now):
		return CredentialStatusExpired
	case c.NeedsRefresh(now, margin):
		return CredentialStatusExpiring
	default:
		return CredentialStatusHealthy
	}
}

// CredentialSummary provides a safe view without secret values
type CredentialSummary struct {
	ID              string           `json:"id"`
	Marketplace     Marketplace      `json:"marketplace"`
	ProfileName     string           `json:"profile_name"`
	IsActive        bool             `json:"is_active"`
	Status          CredentialStatus `json:"status"`
	HasAccessToken  bool             `json:"has_access_token"`
	HasRefreshToken bool             `json:"has_refresh_token"`
	SecretKeys      []string         `json:"secret_keys,omitempty"`
	ExpiresAt       *time.Time       `json:"expires_at,omitempty"`
	Scopes          []string         `json:"scopes,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	LastRefreshedAt *time.Time       `json:"last_refreshed_at,omitempty"`
}

// ToSummary converts Credential to CredentialSummary
func (c *Credential) ToSummary(now time.Time, margin time.Duration) *CredentialSummary {
	keys := make([]string, 0, len(c.Secrets))
	for k, v := range c.Secrets {
		if v != "" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	return &CredentialSummary{
		ID:              c.ID,
		Marketplace:     c.Marketplace,
		ProfileName:     c.ProfileName,
		IsActive:        c.IsActive,
		Status:          c.Status(now, margin),
		HasAccessToken:  c.AccessToken() != "",
		HasRefreshToken: c.RefreshToken() != "",
		SecretKeys:      keys,
		ExpiresAt:       c.ExpiresAt,
		Scopes:          c.Scopes,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		LastRefreshedAt: c.LastRefreshedAt,
	}
}
