// Package oauth implements the provider token endpoint on golang.org/x/oauth2.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// Ensure TokenEndpoint implements the interface.
var _ driven.TokenEndpoint = (*TokenEndpoint)(nil)

// DefaultTimeout bounds every token endpoint call.
const DefaultTimeout = 15 * time.Second

// maxErrorBody caps the response body kept on a ProviderError.
const maxErrorBody = 4096

// TokenEndpoint performs authorization code and refresh token grants.
type TokenEndpoint struct {
	httpClient *http.Client
}

// NewTokenEndpoint creates a token endpoint client. A zero timeout uses DefaultTimeout.
func NewTokenEndpoint(timeout time.Duration) *TokenEndpoint {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TokenEndpoint{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewTokenEndpointWithClient uses client for all requests.
func NewTokenEndpointWithClient(client *http.Client) *TokenEndpoint {
	return &TokenEndpoint{httpClient: client}
}

// ExchangeCode redeems an authorization code. The verifier and redirect URI
// must be the ones recorded when the authorization started.
func (e *TokenEndpoint) ExchangeCode(ctx context.Context, provider *domain.ProviderConfig, req driven.CodeExchange) (*domain.TokenResult, error) {
	cfg := oauthConfig(provider)
	cfg.RedirectURL = req.RedirectURI

	var opts []oauth2.AuthCodeOption
	if req.CodeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(req.CodeVerifier))
	}

	tok, err := cfg.Exchange(e.withClient(ctx), req.Code, opts...)
	if err != nil {
		return nil, classify(provider.Marketplace, err, false)
	}
	return tokenResult(tok), nil
}

// Refresh redeems a refresh token. A response without a refresh token
// yields a result carrying the one sent.
func (e *TokenEndpoint) Refresh(ctx context.Context, provider *domain.ProviderConfig, refreshToken string) (*domain.TokenResult, error) {
	cfg := oauthConfig(provider)

	// An empty access token forces the source to hit the token endpoint.
	src := cfg.TokenSource(e.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, classify(provider.Marketplace, err, true)
	}
	return tokenResult(tok), nil
}

func (e *TokenEndpoint) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

func oauthConfig(p *domain.ProviderConfig) *oauth2.Config {
	style := oauth2.AuthStyleInParams
	if p.AuthStyle == domain.AuthStyleHeader {
		style = oauth2.AuthStyleInHeader
	}
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.AuthURL,
			TokenURL:  p.TokenURL,
			AuthStyle: style,
		},
	}
}

func tokenResult(tok *oauth2.Token) *domain.TokenResult {
	res := &domain.TokenResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		res.ExpiresAt = &exp
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		res.Scopes = strings.FieldsFunc(scope, func(r rune) bool { return r == ' ' || r == ',' })
	}
	return res
}

// oauthErrorBody is the RFC 6749 section 5.2 error response.
type oauthErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// classify maps a grant failure onto a ProviderError kind.
func classify(marketplace domain.Marketplace, err error, refresh bool) error {
	pe := &domain.ProviderError{Marketplace: marketplace, Err: err}

	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		switch {
		case isNetworkError(err):
			pe.Kind = domain.ProviderErrorTransient
		case refresh:
			pe.Kind = domain.ProviderErrorTransient
		default:
			pe.Kind = domain.ProviderErrorRejected
		}
		return pe
	}

	if re.Response != nil {
		pe.StatusCode = re.Response.StatusCode
	}
	pe.Code, pe.Description = re.ErrorCode, re.ErrorDescription
	if pe.Code == "" {
		var body oauthErrorBody
		if json.Unmarshal(re.Body, &body) == nil {
			pe.Code, pe.Description = body.Error, body.ErrorDescription
		}
	}
	pe.Body = string(re.Body)
	if len(pe.Body) > maxErrorBody {
		pe.Body = pe.Body[:maxErrorBody]
	}

	switch {
	case pe.StatusCode >= 500 || pe.StatusCode == http.StatusTooManyRequests:
		pe.Kind = domain.ProviderErrorTransient
	case pe.Code == "invalid_client" || pe.Code == "unauthorized_client":
		pe.Kind = domain.ProviderErrorConfiguration
	case pe.Code == "temporarily_unavailable":
		pe.Kind = domain.ProviderErrorTransient
	case refresh:
		pe.Kind = domain.ProviderErrorReauth
	default:
		pe.Kind = domain.ProviderErrorRejected
	}
	return pe
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
