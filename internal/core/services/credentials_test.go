package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
	"github.com/custodia-labs/marketlink/internal/core/ports/driving"
)

func stateFromURL(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query()
}

func TestProvisionStaticUpsertsInPlace(t *testing.T) {
	for _, m := range domain.SupportedMarketplaces() {
		t.Run(string(m), func(t *testing.T) {
			d := newTestDeps()
			svc := d.service()
			ctx := context.Background()

			first, err := svc.ProvisionStatic(ctx, driving.ProvisionStaticRequest{
				Marketplace: m,
				Secrets:     map[string]string{domain.SecretAPIKey: "first"},
			})
			require.NoError(t, err)

			second, err := svc.ProvisionStatic(ctx, driving.ProvisionStaticRequest{
				Marketplace: m,
				ProfileName: domain.DefaultProfileName,
				Secrets:     map[string]string{domain.SecretAPIKey: "second"},
			})
			require.NoError(t, err)

			assert.Equal(t, 1, d.store.Count())
			assert.Equal(t, first.ID, second.ID)

			stored, err := d.store.Get(ctx, m, domain.DefaultProfileName)
			require.NoError(t, err)
			assert.True(t, stored.IsActive)
			assert.Equal(t, "second", stored.Secret(domain.SecretAPIKey))
		})
	}
}

func TestProvisionStaticScenario(t *testing.T) {
	d := newTestDeps()
	svc := d.service()
	ctx := context.Background()

	_, err := svc.ProvisionStatic(ctx, driving.ProvisionStaticRequest{
		Marketplace: domain.MarketplaceJoom,
		Secrets:     map[string]string{"apiKey": "abc"},
	})
	require.NoError(t, err)

	stored, err := d.store.Get(ctx, domain.MarketplaceJoom, "default")
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.Nil(t, stored.ExpiresAt)
	assert.Equal(t, "abc", stored.Secret("apiKey"))

	// Non-expiring credentials are returned without a provider call.
	fresh, err := svc.EnsureFresh(ctx, domain.MarketplaceJoom, "")
	require.NoError(t, err)
	assert.Equal(t, "abc", fresh.Secret("apiKey"))
	assert.Equal(t, 0, d.endpoint.RefreshCalls())
}

func TestProvisionStaticValidation(t *testing.T) {
	d := newTestDeps()
	svc := d.service()

	_, err := svc.ProvisionStatic(context.Background(), driving.ProvisionStaticRequest{
		Marketplace: "invalid-marketplace",
		Secrets:     map[string]string{"apiKey": "x"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.ProvisionStatic(context.Background(), driving.ProvisionStaticRequest{Marketplace: domain.MarketplaceEtsy})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 0, d.store.Count())
}

func TestFullPKCEFlow(t *testing.T) {
	d := newTestDeps()
	d.endpoint.ExchangeFn = func(_ *domain.ProviderConfig, req driven.CodeExchange) (*domain.TokenResult, error) {
		if req.Code != "goodcode" {
			return nil, &domain.ProviderError{Kind: domain.ProviderErrorRejected, StatusCode: 400}
		}
		exp := d.clock.Now().Add(3600 * time.Second)
		return &domain.TokenResult{AccessToken: "t1", RefreshToken: "r1", ExpiresAt: &exp}, nil
	}
	svc := d.service()
	ctx := context.Background()

	resp, err := svc.BeginAuthorization(ctx, driving.BeginAuthorizationRequest{
		Marketplace: domain.MarketplaceEtsy,
		ProfileName: "default",
		RedirectURI: "https://cb",
		Scopes:      []string{"read", "write"},
	})
	require.NoError(t, err)

	q := stateFromURL(t, resp.AuthorizationURL)
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "read write", q.Get("scope"))
	assert.Equal(t, "https://cb", q.Get("redirect_uri"))
	assert.Equal(t, resp.State, q.Get("state"))
	assert.Equal(t, d.clock.Now().Add(domain.DefaultAuthorizationStateTTL), resp.ExpiresAt)

	cred, err := svc.CompleteAuthorization(ctx, driving.CompleteAuthorizationRequest{
		Marketplace: domain.MarketplaceEtsy,
		Code:        "goodcode",
		State:       q.Get("state"),
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", cred.AccessToken())
	assert.Equal(t, "r1", cred.RefreshToken())
	require.NotNil(t, cred.ExpiresAt)
	assert.WithinDuration(t, d.clock.Now().Add(3600*time.Second), *cred.ExpiresAt, time.Second)

	stored, err := d.store.Get(ctx, domain.MarketplaceEtsy, "default")
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.Equal(t, "t1", stored.AccessToken())
	assert.Equal(t, []string{"read", "write"}, stored.Scopes)

	// The verifier sent with the exchange matches the challenge in the URL.
	sent := d.endpoint.LastExchange()
	assert.Equal(t, q.Get("code_challenge"), ChallengeFor(sent.CodeVerifier))
	assert.Equal(t, "https://cb", sent.RedirectURI)
}

func TestCompleteAuthorizationSingleUse(t *testing.T) {
	d := newTestDeps()
	svc := d.service()
	ctx := context.Background()

	resp, err := svc.BeginAuthorization(ctx, driving.BeginAuthorizationRequest{Marketplace: domain.MarketplaceEtsy})
	require.NoError(t, err)

	_, err = svc.CompleteAuthorization(ctx, driving.CompleteAuthorizationRequest{Code: "c1", State: resp.State})
	require.NoError(t, err)

	_, err = svc.CompleteAuthorization(ctx, driving.CompleteAuthorizationRequest{Code: "c1", State: resp.State})
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredState)
	assert.Equal(t, 1, d.endpoint.ExchangeCalls())
	assert.Equal(t, 1, d.store.Count())
}

func TestCompleteAuthorizationLogicalExpiry(t *testing.T) {
	d := newTestDeps()
	svc := d.service()
	ctx := context.Background()

	resp, err := svc.BeginAuthorization(ctx, driving.BeginAuthorizationRequest{Marketplace: domain.MarketplaceEtsy})
	require.NoError(t, err)
	require.Equal(t, 1, d.ledger.Len())

	d.clock.Advance(domain.DefaultAuthorizationStateTTL + time.Second)

	_, err = svc.CompleteAuthorization(ctx, driving.CompleteAuthorizationRequest{Code: "c1", State: resp.State})
	assert.ErrorIs(t, err, domain.ErrStateExpired)
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredState)
	assert.Equal(t, 0, d.endpoint.ExchangeCalls())
	assert.Equal(t, 0, d.store.Count())
}

func TestCompleteAuthorizationProviderError(t *testing.T) {
	d := newTestDeps()
	svc := d.service()
	ctx := context.Background()

	resp, err := svc.BeginAuthorization(ctx, driving.BeginAuthorizationRequest{Marketplace: domain.MarketplaceJoom})
	require.NoError(t, err)

	_, err = svc.CompleteAuthorization(ctx, driving.CompleteAuthorizationRequest{
		State:            resp.State,
		Error:            "access_denied",
		ErrorDescription: "The user denied access",
	})
	require.ErrorIs(t, err, domain.ErrExchangeRejected)

	var oauthErr *driving.OAuthError
	require.True(t, errors.As(err, &oauthErr))
	assert.Equal(t, "access_denied", oauthErr.Code)
	assert.Equal(t, 0, d.ledger.ConsumeCalls)
	assert.Equal(t, 0, d.endpoint.ExchangeCalls())
}

func TestCompleteAuthorizationInputValidation(t *testing.T) {
	d := newTestDeps()
	svc := d.service()

	_, err := svc.CompleteAuthorization(context.Background(), driving.CompleteAuthorizationRequest{Code: "c"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredState)

	_, err = svc.CompleteAuthorization(context.Background(), driving.CompleteAuthorizationRequest{State: "s"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 0, d.ledger.ConsumeCalls)
}

func TestCompleteAuthorizationKeepsStoredClientCredentials(t *testing.T) {
	d := newTestDeps()
	svc := d.service()
	ctx := context.Background()

	_, err := svc.ProvisionStatic(ctx, driving.ProvisionStaticRequest{
		Marketplace: domain.MarketplaceJoom,
		Secrets: map[string]string{
			domain.SecretClientID:     "own-client",
			domain.SecretClientSecret: "own-secret",
			domain.SecretRefreshToken: "stale-refresh",
		},
	})
	require.NoError(t, err)

	d.endpoint.ExchangeFn = func(*domain.ProviderConfig, driven.CodeExchange) (*domain.TokenResult, error) {
		return &domain.TokenResult{AccessToken: "t1"}, nil
	}
	resp, err := svc.BeginAuthorization(ctx, driving.BeginAuthorizationRequest{Marketplace: domain.MarketplaceJoom})
	require.NoError(t, err)
	cred, err := svc.CompleteAuthorization(ctx, driving.CompleteAuthorizationRequest{Code: "c", State: resp.State})
	require.NoError(t, err)

	assert.Equal(t, "own-client", cred.Secret(domain.SecretClientID))
	assert.Equal(t, "t1", cred.AccessToken())
	assert.Empty(t, cred.RefreshToken(), "a refresh token from an earlier grant is dropped")
	assert.Equal(t, 1, d.store.Count())
}

func TestBeginAuthorizationNonPKCEProvider(t *testing.T) {
	d := newTestDeps()
	svc := d.service()

	resp, err := svc.BeginAuthorization(context.Background(), driving.BeginAuthorizationRequest{Marketplace: domain.MarketplaceJoom})
	require.NoError(t, err)

	q := stateFromURL(t, resp.AuthorizationURL)
	assert.Empty(t, q.Get("code_challenge"))
	assert.Equal(t, "read write", q.Get("scope"))
	assert.Equal(t, "https://cb.example.com/oauth/callback", q.Get("redirect_uri"))
}

func TestBeginAuthorizationShopify(t *testing.T) {
	d := newTestDeps()
	svc := d.service()
	ctx := context.Background()

	_, err := svc.BeginAuthorization(ctx, driving.BeginAuthorizationRequest{Marketplace: domain.MarketplaceShopify})
	require.ErrorIs(t, err, domain.ErrConfiguration)

	resp, err := svc.BeginAuthorization(ctx, driving.BeginAuthorizationRequest{
		Marketplace: domain.MarketplaceShopify,
		ShopDomain:  "acme.myshopify.com",
	})
	require.NoError(t, err)

	u, err := url.Parse(resp.AuthorizationURL)
	require.NoError(t, err)
	assert.Equal(t, "acme.myshopify.com", u.Host)

	cred, err := svc.CompleteAuthorization(ctx, driving.CompleteAuthorizationRequest{Code: "c", State: resp.State})
	require.NoError(t, err)
	assert.Equal(t, "acme.myshopify.com", cred.Secret(domain.SecretShopDomain))
}

func TestBeginAuthorizationErrors(t *testing.T) {
	t.Run("missing configuration", func(t *testing.T) {
		d := newTestDeps()
		_, err := d.service().BeginAuthorization(context.Background(), driving.BeginAuthorizationRequest{Marketplace: domain.MarketplaceEbay})
		assert.ErrorIs(t, err, domain.ErrConfiguration)
		assert.Equal(t, 0, d.ledger.Len())
	})

	t.Run("unknown marketplace", func(t *testing.T) {
		d := newTestDeps()
		_, err := d.service().BeginAuthorization(context.Background(), driving.BeginAuthorizationRequest{Marketplace: "amazon"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("ledger unavailable", func(t *testing.T) {
		d := newTestDeps()
		d.ledger.PutErr = fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable)
		_, err := d.service().BeginAuthorization(context.Background(), driving.BeginAuthorizationRequest{Marketplace: domain.MarketplaceEtsy})
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	})
}

func TestEnsureFreshSkipsFreshCredential(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceEtsy, 5*time.Minute)
	svc := d.service()

	cred, err := svc.EnsureFresh(context.Background(), domain.MarketplaceEtsy, "")
	require.NoError(t, err)
	assert.Equal(t, "a0", cred.AccessToken())
	assert.Equal(t, 0, d.endpoint.RefreshCalls())
	assert.Equal(t, 0, d.lock.Acquired("refresh:etsy/default"))
}

func TestEnsureFreshRefreshesWithinSafetyMargin(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceEtsy, 30*time.Second)
	svc := d.service()

	cred, err := svc.EnsureFresh(context.Background(), domain.MarketplaceEtsy, "")
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access", cred.AccessToken())
	assert.Equal(t, 1, d.endpoint.RefreshCalls())
	assert.Equal(t, 1, d.lock.Acquired("refresh:etsy/default"))
	assert.Equal(t, 1, d.lock.Released("refresh:etsy/default"))
	require.NotNil(t, cred.LastRefreshedAt)
}

func TestEnsureFreshRefreshTokenRotation(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceJoom, -time.Minute)
	d.endpoint.RefreshFn = func(*domain.ProviderConfig, string) (*domain.TokenResult, error) {
		exp := d.clock.Now().Add(time.Hour)
		return &domain.TokenResult{AccessToken: "a2", ExpiresAt: &exp}, nil
	}
	svc := d.service()

	cred, err := svc.EnsureFresh(context.Background(), domain.MarketplaceJoom, "")
	require.NoError(t, err)
	assert.Equal(t, "a2", cred.AccessToken())
	assert.Equal(t, "r1", cred.RefreshToken())

	stored, err := d.store.Get(context.Background(), domain.MarketplaceJoom, domain.DefaultProfileName)
	require.NoError(t, err)
	assert.Equal(t, "r1", stored.RefreshToken())
	assert.Equal(t, "a2", stored.AccessToken())
}

func TestEnsureFreshRotatedRefreshTokenReplacesOld(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceJoom, -time.Minute)
	d.endpoint.RefreshFn = func(*domain.ProviderConfig, string) (*domain.TokenResult, error) {
		exp := d.clock.Now().Add(time.Hour)
		return &domain.TokenResult{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: &exp}, nil
	}

	cred, err := d.service().EnsureFresh(context.Background(), domain.MarketplaceJoom, "")
	require.NoError(t, err)
	assert.Equal(t, "r2", cred.RefreshToken())
}

func TestEnsureFreshDeadRefreshToken(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceJoom, -time.Minute)
	d.endpoint.RefreshFn = func(*domain.ProviderConfig, string) (*domain.TokenResult, error) {
		return nil, &domain.ProviderError{
			Kind:       domain.ProviderErrorReauth,
			StatusCode: 400,
			Code:       "invalid_grant",
		}
	}
	svc := d.service()
	ctx := context.Background()

	_, err := svc.EnsureFresh(ctx, domain.MarketplaceJoom, "")
	require.ErrorIs(t, err, domain.ErrReauthorizationRequired)

	stored, err := d.store.Get(ctx, domain.MarketplaceJoom, domain.DefaultProfileName)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, 1, d.endpoint.RefreshCalls(), "reauthorization is not retried")

	// Inactive credentials fail fast.
	_, err = svc.EnsureFresh(ctx, domain.MarketplaceJoom, "")
	assert.ErrorIs(t, err, domain.ErrReauthorizationRequired)
	assert.Equal(t, 1, d.endpoint.RefreshCalls())
}

func TestEnsureFreshMissingRefreshToken(t *testing.T) {
	d := newTestDeps()
	exp := d.clock.Now().Add(-time.Minute)
	d.store.Put(&domain.Credential{
		Marketplace: domain.MarketplaceJoom,
		ProfileName: domain.DefaultProfileName,
		IsActive:    true,
		ExpiresAt:   &exp,
		Secrets:     map[string]string{domain.SecretAccessToken: "a0"},
	})

	_, err := d.service().EnsureFresh(context.Background(), domain.MarketplaceJoom, "")
	require.ErrorIs(t, err, domain.ErrReauthorizationRequired)
	assert.Equal(t, 0, d.endpoint.RefreshCalls())

	stored, _ := d.store.Get(context.Background(), domain.MarketplaceJoom, domain.DefaultProfileName)
	assert.False(t, stored.IsActive)
}

func TestEnsureFreshRetriesTransientFailures(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceJoom, -time.Minute)
	calls := 0
	d.endpoint.RefreshFn = func(*domain.ProviderConfig, string) (*domain.TokenResult, error) {
		calls++
		if calls < 3 {
			return nil, &domain.ProviderError{Kind: domain.ProviderErrorTransient, StatusCode: 503}
		}
		exp := d.clock.Now().Add(time.Hour)
		return &domain.TokenResult{AccessToken: "a3", ExpiresAt: &exp}, nil
	}

	cred, err := d.service().EnsureFresh(context.Background(), domain.MarketplaceJoom, "")
	require.NoError(t, err)
	assert.Equal(t, "a3", cred.AccessToken())
	assert.Equal(t, 3, d.endpoint.RefreshCalls())
}

func TestEnsureFreshTransientFailuresAreBounded(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceJoom, -time.Minute)
	d.endpoint.RefreshFn = func(*domain.ProviderConfig, string) (*domain.TokenResult, error) {
		return nil, &domain.ProviderError{Kind: domain.ProviderErrorTransient, StatusCode: 502}
	}

	_, err := d.service().EnsureFresh(context.Background(), domain.MarketplaceJoom, "")
	require.ErrorIs(t, err, domain.ErrTransientProvider)
	assert.Equal(t, defaultRefreshMaxAttempts, d.endpoint.RefreshCalls())

	stored, _ := d.store.Get(context.Background(), domain.MarketplaceJoom, domain.DefaultProfileName)
	assert.True(t, stored.IsActive, "transient failures keep the credential active")
}

func TestEnsureFreshSurfacesPersistFailure(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceJoom, -time.Minute)
	d.store.UpdateErr = fmt.Errorf("%w: write failed", domain.ErrStoreUnavailable)

	_, err := d.service().EnsureFresh(context.Background(), domain.MarketplaceJoom, "")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestEnsureFreshNotFound(t *testing.T) {
	d := newTestDeps()
	_, err := d.service().EnsureFresh(context.Background(), domain.MarketplaceEtsy, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEnsureFreshConcurrentCallersShareOneRefresh(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceEtsy, -time.Minute)
	d.endpoint.RefreshFn = func(*domain.ProviderConfig, string) (*domain.TokenResult, error) {
		time.Sleep(50 * time.Millisecond)
		exp := d.clock.Now().Add(time.Hour)
		return &domain.TokenResult{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: &exp}, nil
	}
	svc := d.service()

	const callers = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]*domain.Credential, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = svc.EnsureFresh(context.Background(), domain.MarketplaceEtsy, "default")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "a2", results[i].AccessToken())
		assert.Equal(t, "r2", results[i].RefreshToken())
	}
	assert.Equal(t, 1, d.endpoint.RefreshCalls())
	assert.Equal(t, []string{"r1"}, d.endpoint.RefreshTokensSent())
}

func TestEnsureFreshAcrossInstancesSharesOneRefresh(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceEtsy, -time.Minute)
	d.endpoint.RefreshFn = func(*domain.ProviderConfig, string) (*domain.TokenResult, error) {
		time.Sleep(100 * time.Millisecond)
		exp := d.clock.Now().Add(time.Hour)
		return &domain.TokenResult{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: &exp}, nil
	}

	cfg := d.config()
	cfg.LeaseWait = 2 * time.Second
	instanceA := NewCredentialService(cfg)
	instanceB := NewCredentialService(cfg)

	var wg sync.WaitGroup
	var errA, errB error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errA = instanceA.EnsureFresh(context.Background(), domain.MarketplaceEtsy, "")
	}()
	go func() {
		defer wg.Done()
		_, errB = instanceB.EnsureFresh(context.Background(), domain.MarketplaceEtsy, "")
	}()
	wg.Wait()

	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, 1, d.endpoint.RefreshCalls())
}

func TestEnsureFreshLeaseHeldElsewhere(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceEtsy, -time.Minute)
	d.lock.HoldElsewhere("refresh:etsy/default", time.Minute)

	_, err := d.service().EnsureFresh(context.Background(), domain.MarketplaceEtsy, "")
	require.ErrorIs(t, err, domain.ErrRefreshInProgress)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, 0, d.endpoint.RefreshCalls())
}

func TestEnsureFreshLeaseBackendDown(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceEtsy, -time.Minute)
	d.lock.AcquireFn = func(string, time.Duration) (bool, error) {
		return false, errors.New("dial tcp: connection refused")
	}

	_, err := d.service().EnsureFresh(context.Background(), domain.MarketplaceEtsy, "")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 0, d.endpoint.RefreshCalls())
}

func TestEnsureFreshWithoutLock(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceEtsy, -time.Minute)
	cfg := d.config()
	cfg.Lock = nil

	cred, err := NewCredentialService(cfg).EnsureFresh(context.Background(), domain.MarketplaceEtsy, "")
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access", cred.AccessToken())
}

func TestEnsureFreshKeepsLeaseThroughSlowRefresh(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceEtsy, -time.Minute)
	d.endpoint.RefreshFn = func(*domain.ProviderConfig, string) (*domain.TokenResult, error) {
		time.Sleep(300 * time.Millisecond)
		exp := d.clock.Now().Add(time.Hour)
		return &domain.TokenResult{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: &exp}, nil
	}

	cfg := d.config()
	cfg.LeaseTTL = 100 * time.Millisecond
	cfg.LeaseWait = 2 * time.Second
	instanceA := NewCredentialService(cfg)
	instanceB := NewCredentialService(cfg)
	ctx := context.Background()

	errA := make(chan error, 1)
	go func() {
		_, err := instanceA.EnsureFresh(ctx, domain.MarketplaceEtsy, "")
		errA <- err
	}()

	// Arrive after the first lease TTL has passed.
	time.Sleep(150 * time.Millisecond)
	credB, errB := instanceB.EnsureFresh(ctx, domain.MarketplaceEtsy, "")

	require.NoError(t, <-errA)
	require.NoError(t, errB)
	assert.Equal(t, "a2", credB.AccessToken())
	assert.Equal(t, 1, d.endpoint.RefreshCalls())
	assert.Equal(t, []string{"r1"}, d.endpoint.RefreshTokensSent())
	assert.GreaterOrEqual(t, d.lock.Extended("refresh:etsy/default"), 1)
}

func TestEnsureFreshAbortsWhenLeaseIsLost(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceEtsy, -time.Minute)
	d.lock.ExtendFn = func(string, time.Duration) error {
		return errors.New("lease lapsed")
	}
	d.endpoint.RefreshCtxFn = func(ctx context.Context, _ *domain.ProviderConfig, _ string) (*domain.TokenResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	cfg := d.config()
	cfg.LeaseTTL = 60 * time.Millisecond

	_, err := NewCredentialService(cfg).EnsureFresh(context.Background(), domain.MarketplaceEtsy, "")
	require.ErrorIs(t, err, domain.ErrRefreshInProgress)
	assert.True(t, domain.IsRetryable(err))

	stored, err := d.store.Get(context.Background(), domain.MarketplaceEtsy, domain.DefaultProfileName)
	require.NoError(t, err)
	assert.Equal(t, "a0", stored.AccessToken())
	assert.True(t, stored.IsActive)
}

// blockRefresh makes the endpoint wait inside Refresh until release is closed.
func blockRefresh(d *testDeps) (entered, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	d.endpoint.RefreshFn = func(*domain.ProviderConfig, string) (*domain.TokenResult, error) {
		once.Do(func() { close(entered) })
		<-release
		exp := d.clock.Now().Add(time.Hour)
		return &domain.TokenResult{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: &exp}, nil
	}
	return entered, release
}

func TestEnsureFreshDoesNotReviveDeactivatedCredential(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceJoom, -time.Minute)
	entered, release := blockRefresh(d)
	svc := d.service()
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.EnsureFresh(ctx, domain.MarketplaceJoom, "")
		errCh <- err
	}()

	<-entered
	require.NoError(t, svc.Deactivate(ctx, domain.MarketplaceJoom, ""))
	close(release)

	require.ErrorIs(t, <-errCh, domain.ErrReauthorizationRequired)

	stored, err := d.store.Get(ctx, domain.MarketplaceJoom, domain.DefaultProfileName)
	require.NoError(t, err)
	assert.False(t, stored.IsActive, "operator deactivation wins")
	assert.Equal(t, "a0", stored.AccessToken())
	assert.Equal(t, "r1", stored.RefreshToken())
}

func TestEnsureFreshKeepsConcurrentReprovision(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceJoom, -time.Minute)
	entered, release := blockRefresh(d)
	svc := d.service()
	ctx := context.Background()

	type result struct {
		cred *domain.Credential
		err  error
	}
	done := make(chan result, 1)
	go func() {
		cred, err := svc.EnsureFresh(ctx, domain.MarketplaceJoom, "")
		done <- result{cred, err}
	}()

	<-entered
	_, err := svc.ProvisionStatic(ctx, driving.ProvisionStaticRequest{
		Marketplace: domain.MarketplaceJoom,
		Secrets:     map[string]string{domain.SecretAccessToken: "static"},
		ExpiresAt:   timePtr(d.clock.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	close(release)

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, "static", r.cred.AccessToken())

	stored, err := d.store.Get(ctx, domain.MarketplaceJoom, domain.DefaultProfileName)
	require.NoError(t, err)
	assert.Equal(t, "static", stored.AccessToken())
	assert.Empty(t, stored.RefreshToken(), "refreshed tokens are discarded")
}

func TestEnsureFreshSharedRefreshOutlivesFirstCaller(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceEtsy, -time.Minute)
	entered, release := blockRefresh(d)
	svc := d.service()

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.EnsureFresh(leaderCtx, domain.MarketplaceEtsy, "")
		leaderErr <- err
	}()
	<-entered

	type result struct {
		cred *domain.Credential
		err  error
	}
	follower := make(chan result, 1)
	go func() {
		cred, err := svc.EnsureFresh(context.Background(), domain.MarketplaceEtsy, "")
		follower <- result{cred, err}
	}()

	cancel()
	require.ErrorIs(t, <-leaderErr, context.Canceled)
	close(release)

	r := <-follower
	require.NoError(t, r.err)
	assert.Equal(t, "a2", r.cred.AccessToken())
	assert.Equal(t, 1, d.endpoint.RefreshCalls())

	stored, err := d.store.Get(context.Background(), domain.MarketplaceEtsy, domain.DefaultProfileName)
	require.NoError(t, err)
	assert.Equal(t, "a2", stored.AccessToken())
}

func TestHandleUnauthorized(t *testing.T) {
	t.Run("token already replaced", func(t *testing.T) {
		d := newTestDeps()
		d.seedExpiring(t, domain.MarketplaceEtsy, time.Hour)

		cred, err := d.service().HandleUnauthorized(context.Background(), domain.MarketplaceEtsy, "", "older-token")
		require.NoError(t, err)
		assert.Equal(t, "a0", cred.AccessToken())
		assert.Equal(t, 0, d.endpoint.RefreshCalls())
	})

	t.Run("rejected current token", func(t *testing.T) {
		d := newTestDeps()
		d.seedExpiring(t, domain.MarketplaceEtsy, time.Hour)

		cred, err := d.service().HandleUnauthorized(context.Background(), domain.MarketplaceEtsy, "", "a0")
		require.NoError(t, err)
		assert.Equal(t, "refreshed-access", cred.AccessToken())
		assert.Equal(t, 1, d.endpoint.RefreshCalls())
	})
}

func TestDeactivate(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceEtsy, time.Hour)
	svc := d.service()
	ctx := context.Background()

	require.NoError(t, svc.Deactivate(ctx, domain.MarketplaceEtsy, ""))

	sum, err := svc.Get(ctx, domain.MarketplaceEtsy, "")
	require.NoError(t, err)
	assert.False(t, sum.IsActive)
	assert.Equal(t, domain.CredentialStatusInactive, sum.Status)

	assert.ErrorIs(t, svc.Deactivate(ctx, domain.MarketplaceJoom, ""), domain.ErrNotFound)
}

func TestListAndStatus(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceEtsy, time.Hour)
	d.seedExpiring(t, domain.MarketplaceJoom, 30*time.Second)
	svc := d.service()
	ctx := context.Background()

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.MarketplaceEtsy, list[0].Marketplace)
	assert.True(t, list[0].HasAccessToken)

	statuses, err := svc.Status(ctx)
	require.NoError(t, err)
	byMarketplace := make(map[domain.Marketplace]*driving.MarketplaceStatus)
	for _, st := range statuses {
		byMarketplace[st.Marketplace] = st
	}

	assert.Equal(t, domain.CredentialStatusHealthy, byMarketplace[domain.MarketplaceEtsy].Status)
	assert.Equal(t, domain.CredentialStatusExpiring, byMarketplace[domain.MarketplaceJoom].Status)
	assert.True(t, byMarketplace[domain.MarketplaceJoom].Configured)

	shopify := byMarketplace[domain.MarketplaceShopify]
	assert.False(t, shopify.Configured, "shopify has no shop domain configured")
	assert.Equal(t, domain.CredentialStatusUnconfigured, shopify.Status)
	assert.Empty(t, shopify.Credentials)

	ebay := byMarketplace[domain.MarketplaceEbay]
	assert.False(t, ebay.Configured)
	assert.Contains(t, ebay.ConfigError, "EBAY_CLIENT_ID")
}

func TestRefreshForcesRenewal(t *testing.T) {
	d := newTestDeps()
	d.seedExpiring(t, domain.MarketplaceEtsy, time.Hour)
	svc := d.service()

	cred, err := svc.Refresh(context.Background(), domain.MarketplaceEtsy, "")
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access", cred.AccessToken())
	assert.Equal(t, "r1", cred.RefreshToken())
	assert.Equal(t, 1, d.endpoint.RefreshCalls())

	_, err = svc.Refresh(context.Background(), domain.MarketplaceShopify, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
