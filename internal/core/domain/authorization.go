package domain

import "time"

// DefaultAuthorizationStateTTL bounds how long a user has to finish consent
const DefaultAuthorizationStateTTL = 10 * time.Minute

// AuthorizationState is the pending record correlating a redirect to its
// authorization request. It is consumed exactly once.
type AuthorizationState struct {
	State        string      `json:"state"`
	Marketplace  Marketplace `json:"marketplace"`
	ProfileName  string      `json:"profile_name"`
	CodeVerifier string      `json:"code_verifier,omitempty"` // PKCE providers only
	RedirectURI  string      `json:"redirect_uri"`
	Scopes       []string    `json:"scopes,omitempty"`
	ShopDomain   string      `json:"shop_domain,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

// IsExpired reports whether the state's TTL has elapsed at now.
func (s *AuthorizationState) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// TTL returns the remaining lifetime at now, never negative.
func (s *AuthorizationState) TTL(now time.Time) time.Duration {
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// TokenResult is the normalised outcome of a token endpoint call.
// RefreshToken is empty when the provider did not rotate it.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    *time.Time
	Scopes       []string
}
