package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// TokenExchanger redeems authorization codes and refresh tokens and shapes
// the provider response into a TokenResult.
type TokenExchanger struct {
	ledger    driven.StateLedger
	endpoint  driven.TokenEndpoint
	providers driven.ProviderRegistry
	now       func() time.Time
}

// TokenExchangerConfig holds dependencies for the token exchanger.
type TokenExchangerConfig struct {
	StateLedger   driven.StateLedger
	TokenEndpoint driven.TokenEndpoint
	Providers     driven.ProviderRegistry
	Now           func() time.Time // defaults to time.Now
}

// NewTokenExchanger creates a new token exchanger.
func NewTokenExchanger(cfg TokenExchangerConfig) *TokenExchanger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenExchanger{
		ledger:    cfg.StateLedger,
		endpoint:  cfg.TokenEndpoint,
		providers: cfg.Providers,
		now:       now,
	}
}

// ExchangeCode consumes state and redeems code at the token endpoint of the
// marketplace the state was issued for. marketplace may be empty; when set it
// must match. No provider call is made unless the state is valid. The state is
// consumed before the call, so a failed exchange cannot be retried with the
// same state.
func (x *TokenExchanger) ExchangeCode(ctx context.Context, marketplace domain.Marketplace, code, state string) (*domain.TokenResult, *domain.AuthorizationState, error) {
	st, err := x.ledger.Consume(ctx, state)
	if err != nil {
		return nil, nil, fmt.Errorf("consume state: %w", err)
	}
	if marketplace != "" && st.Marketplace != marketplace {
		return nil, nil, fmt.Errorf("%w: state was issued for %s", domain.ErrInvalidOrExpiredState, st.Marketplace)
	}

	provider, err := x.resolve(st.Marketplace, st.ShopDomain)
	if err != nil {
		return nil, nil, err
	}
	provider.RedirectURI = st.RedirectURI
	if err := provider.Validate(); err != nil {
		return nil, nil, err
	}

	res, err := x.endpoint.ExchangeCode(ctx, provider, driven.CodeExchange{
		Code:         code,
		RedirectURI:  st.RedirectURI,
		CodeVerifier: st.CodeVerifier,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("exchange code: %w", err)
	}
	if res.AccessToken == "" {
		return nil, nil, &domain.ProviderError{
			Kind:        domain.ProviderErrorRejected,
			Marketplace: st.Marketplace,
			Description: "token response has no access_token",
		}
	}

	x.applyExpiryPolicy(provider, res)
	return res, st, nil
}

// Refresh redeems the credential's refresh token. A refresh token absent from
// the response keeps the stored one.
func (x *TokenExchanger) Refresh(ctx context.Context, provider *domain.ProviderConfig, cred *domain.Credential) (*domain.TokenResult, error) {
	current := cred.RefreshToken()
	if current == "" {
		return nil, fmt.Errorf("%w: %s has no refresh token", domain.ErrReauthorizationRequired, cred.Key())
	}

	res, err := x.endpoint.Refresh(ctx, provider, current)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if res.AccessToken == "" {
		return nil, &domain.ProviderError{
			Kind:        domain.ProviderErrorTransient,
			Marketplace: cred.Marketplace,
			Description: "refresh response has no access_token",
		}
	}
	if res.RefreshToken == "" {
		res.RefreshToken = current
	}

	x.applyExpiryPolicy(provider, res)
	return res, nil
}

// ProviderFor resolves the provider configuration used to refresh cred.
// Client credentials stored with the credential take precedence over the
// configured ones.
func (x *TokenExchanger) ProviderFor(cred *domain.Credential) (*domain.ProviderConfig, error) {
	p, err := x.resolve(cred.Marketplace, cred.Secret(domain.SecretShopDomain))
	if err != nil {
		return nil, err
	}
	if id := cred.Secret(domain.SecretClientID); id != "" {
		p.ClientID = id
	}
	if secret := cred.Secret(domain.SecretClientSecret); secret != "" {
		p.ClientSecret = secret
	}
	if p.ClientID == "" || p.TokenURL == "" || (p.ConfidentialClient && p.ClientSecret == "") {
		return nil, fmt.Errorf("%w: %s: client credentials or token url missing", domain.ErrConfiguration, cred.Marketplace)
	}
	return p, nil
}

func (x *TokenExchanger) resolve(marketplace domain.Marketplace, shop string) (*domain.ProviderConfig, error) {
	p, err := x.providers.Provider(marketplace)
	if err != nil {
		return nil, err
	}
	return p.ForShop(shop)
}

func (x *TokenExchanger) applyExpiryPolicy(provider *domain.ProviderConfig, res *domain.TokenResult) {
	if res.ExpiresAt != nil {
		return
	}
	if provider.MissingExpiryPolicy == domain.MissingExpiryImmediate {
		now := x.now()
		res.ExpiresAt = &now
	}
}
