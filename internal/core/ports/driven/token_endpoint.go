package driven

import (
	"context"

	"github.com/custodia-labs/marketlink/internal/core/domain"
)

// CodeExchange carries everything sent with grant_type=authorization_code
type CodeExchange struct {
	Code         string
	RedirectURI  string // sent verbatim as stored with the state
	CodeVerifier string // empty for non-PKCE providers
}

// TokenEndpoint performs form-encoded POSTs against a provider token endpoint.
// Failures are returned as *domain.ProviderError so callers can classify them
// with errors.Is.
type TokenEndpoint interface {
	// ExchangeCode redeems an authorization code. Non-2xx responses are
	// domain.ErrExchangeRejected carrying the raw body.
	ExchangeCode(ctx context.Context, provider *domain.ProviderConfig, req CodeExchange) (*domain.TokenResult, error)

	// Refresh redeems a refresh token. 400/401 responses map to
	// domain.ErrReauthorizationRequired, network errors, timeouts, 429 and
	// 5xx to domain.ErrTransientProvider.
	Refresh(ctx context.Context, provider *domain.ProviderConfig, refreshToken string) (*domain.TokenResult, error)
}
