package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
	"github.com/custodia-labs/marketlink/internal/core/ports/driving"
)

// Ensure credentialService implements CredentialService
var _ driving.CredentialService = (*credentialService)(nil)

const (
	defaultRefreshMaxAttempts  = 3
	defaultRefreshInitialDelay = 200 * time.Millisecond
	defaultLeaseTTL            = 30 * time.Second
	defaultLeaseWait           = 5 * time.Second
	defaultRefreshTimeout      = 2 * time.Minute
	leasePollInterval          = 100 * time.Millisecond
)

// CredentialServiceConfig holds dependencies and tuning for the credential service.
type CredentialServiceConfig struct {
	Store         driven.CredentialStore
	StateLedger   driven.StateLedger
	Providers     driven.ProviderRegistry
	TokenEndpoint driven.TokenEndpoint
	Lock          driven.DistributedLock   // Optional: serializes refresh across instances
	Metrics       driven.CredentialMetrics // Optional
	Logger        *slog.Logger

	StateTTL            time.Duration // Authorization state lifetime (default: 10m)
	RefreshSafetyMargin time.Duration // Refresh when expiring within this window (default: 60s)
	RefreshMaxAttempts  uint          // Attempts for transient refresh failures (default: 3)
	RefreshInitialDelay time.Duration // First backoff interval (default: 200ms)
	LeaseTTL            time.Duration // Refresh lease lifetime, extended every third of it (default: 30s)
	LeaseWait           time.Duration // How long to wait for a lease held elsewhere (default: 5s)
	RefreshTimeout      time.Duration // Bound on one shared refresh (default: 2m)

	Now func() time.Time // defaults to time.Now
}

// credentialService implements the CredentialService interface.
type credentialService struct {
	store     driven.CredentialStore
	ledger    driven.StateLedger
	providers driven.ProviderRegistry
	exchanger *TokenExchanger
	lock      driven.DistributedLock
	metrics   driven.CredentialMetrics
	logger    *slog.Logger

	stateTTL     time.Duration
	margin       time.Duration
	maxAttempts  uint
	initialDelay time.Duration
	leaseTTL     time.Duration
	leaseWait    time.Duration
	timeout      time.Duration
	now          func() time.Time

	group singleflight.Group
}

// NewCredentialService creates a new credential lifecycle service.
func NewCredentialService(cfg CredentialServiceConfig) driving.CredentialService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &credentialService{
		store:     cfg.Store,
		ledger:    cfg.StateLedger,
		providers: cfg.Providers,
		lock:      cfg.Lock,
		metrics:   metrics,
		logger:    logger,
		now:       now,

		stateTTL:     orDefault(cfg.StateTTL, domain.DefaultAuthorizationStateTTL),
		margin:       orDefault(cfg.RefreshSafetyMargin, domain.DefaultRefreshSafetyMargin),
		initialDelay: orDefault(cfg.RefreshInitialDelay, defaultRefreshInitialDelay),
		leaseTTL:     orDefault(cfg.LeaseTTL, defaultLeaseTTL),
		leaseWait:    orDefault(cfg.LeaseWait, defaultLeaseWait),
		timeout:      orDefault(cfg.RefreshTimeout, defaultRefreshTimeout),
		maxAttempts:  cfg.RefreshMaxAttempts,
	}
	if s.maxAttempts == 0 {
		s.maxAttempts = defaultRefreshMaxAttempts
	}

	s.exchanger = NewTokenExchanger(TokenExchangerConfig{
		StateLedger:   cfg.StateLedger,
		TokenEndpoint: cfg.TokenEndpoint,
		Providers:     cfg.Providers,
		Now:           now,
	})
	return s
}

// ProvisionStatic stores caller-supplied secrets as the active credential.
func (s *credentialService) ProvisionStatic(ctx context.Context, req driving.ProvisionStaticRequest) (*domain.Credential, error) {
	if _, err := s.providers.Provider(req.Marketplace); err != nil {
		return nil, err
	}
	if len(req.Secrets) == 0 {
		return nil, fmt.Errorf("%w: secrets are required", domain.ErrInvalidInput)
	}

	cred := &domain.Credential{
		Marketplace: req.Marketplace,
		ProfileName: domain.ProfileOrDefault(req.ProfileName),
		Secrets:     maps.Clone(req.Secrets),
		IsActive:    true,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := s.store.Upsert(ctx, cred); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	s.logger.Info("credential provisioned",
		"marketplace", cred.Marketplace,
		"profile", cred.ProfileName,
		"credential_id", cred.ID,
	)
	return cred, nil
}

// BeginAuthorization records a single-use state and returns the consent URL.
func (s *credentialService) BeginAuthorization(ctx context.Context, req driving.BeginAuthorizationRequest) (*driving.AuthorizationResponse, error) {
	configured, err := s.providers.Provider(req.Marketplace)
	if err != nil {
		return nil, err
	}
	provider, err := configured.ForShop(req.ShopDomain)
	if err != nil {
		return nil, err
	}
	if req.RedirectURI != "" {
		provider.RedirectURI = req.RedirectURI
	}
	if err := provider.Validate(); err != nil {
		return nil, err
	}

	scopes := provider.Scopes
	if len(req.Scopes) > 0 {
		scopes = req.Scopes
	}

	now := s.now()
	st := &domain.AuthorizationState{
		State:       GenerateState(),
		Marketplace: provider.Marketplace,
		ProfileName: domain.ProfileOrDefault(req.ProfileName),
		RedirectURI: provider.RedirectURI,
		Scopes:      scopes,
		ShopDomain:  provider.ShopDomain,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.stateTTL),
	}

	var challenge string
	if provider.RequiresPKCE {
		st.CodeVerifier = GenerateVerifier()
		challenge = ChallengeFor(st.CodeVerifier)
	}

	if err := s.ledger.Put(ctx, st, s.stateTTL); err != nil {
		return nil, fmt.Errorf("save authorization state: %w", err)
	}

	s.metrics.AuthorizationStarted(provider.Marketplace)
	s.logger.Info("authorization started",
		"marketplace", st.Marketplace,
		"profile", st.ProfileName,
		"pkce", provider.RequiresPKCE,
		"expires_at", st.ExpiresAt,
	)

	return &driving.AuthorizationResponse{
		AuthorizationURL: BuildAuthorizationURL(provider, st.RedirectURI, scopes, st.State, challenge),
		State:            st.State,
		ExpiresAt:        st.ExpiresAt,
	}, nil
}

// CompleteAuthorization consumes the state, exchanges the code and upserts
// the credential. State failures leave the store untouched.
func (s *credentialService) CompleteAuthorization(ctx context.Context, req driving.CompleteAuthorizationRequest) (*domain.Credential, error) {
	if req.Error != "" {
		s.metrics.AuthorizationCompleted(req.Marketplace, driven.OutcomeFailed)
		return nil, fmt.Errorf("%w: %w", domain.ErrExchangeRejected, &driving.OAuthError{
			Code:        req.Error,
			Description: req.ErrorDescription,
		})
	}
	if req.State == "" {
		return nil, domain.ErrStateNotFound
	}
	if req.Code == "" {
		return nil, fmt.Errorf("%w: authorization code is required", domain.ErrInvalidInput)
	}
	if req.Marketplace != "" {
		if _, err := s.providers.Provider(req.Marketplace); err != nil {
			return nil, err
		}
	}

	res, st, err := s.exchanger.ExchangeCode(ctx, req.Marketplace, req.Code, req.State)
	if err != nil {
		s.metrics.AuthorizationCompleted(req.Marketplace, driven.OutcomeFailed)
		s.logger.Warn("authorization exchange failed", "marketplace", req.Marketplace, "error", err)
		return nil, err
	}

	secrets, err := s.retainedSecrets(ctx, st.Marketplace, st.ProfileName)
	if err != nil {
		return nil, err
	}
	secrets[domain.SecretAccessToken] = res.AccessToken
	delete(secrets, domain.SecretRefreshToken)
	if res.RefreshToken != "" {
		secrets[domain.SecretRefreshToken] = res.RefreshToken
	}
	if st.ShopDomain != "" {
		secrets[domain.SecretShopDomain] = st.ShopDomain
	}

	now := s.now()
	cred := &domain.Credential{
		Marketplace:     st.Marketplace,
		ProfileName:     st.ProfileName,
		Secrets:         secrets,
		IsActive:        true,
		ExpiresAt:       res.ExpiresAt,
		TokenType:       res.TokenType,
		Scopes:          res.Scopes,
		LastRefreshedAt: &now,
	}
	if len(cred.Scopes) == 0 {
		cred.Scopes = st.Scopes
	}
	if err := s.store.Upsert(ctx, cred); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	s.metrics.AuthorizationCompleted(st.Marketplace, driven.OutcomeSuccess)
	s.logger.Info("authorization completed",
		"marketplace", cred.Marketplace,
		"profile", cred.ProfileName,
		"credential_id", cred.ID,
		"has_refresh_token", cred.RefreshToken() != "",
	)
	return cred, nil
}

// retainedSecrets returns the non-token secrets of an existing credential,
// such as stored client credentials, so a new grant does not drop them.
func (s *credentialService) retainedSecrets(ctx context.Context, marketplace domain.Marketplace, profile string) (map[string]string, error) {
	existing, err := s.store.Get(ctx, marketplace, profile)
	if errors.Is(err, domain.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	secrets := maps.Clone(existing.Secrets)
	if secrets == nil {
		secrets = map[string]string{}
	}
	return secrets, nil
}

// EnsureFresh returns a credential valid for at least the safety margin.
func (s *credentialService) EnsureFresh(ctx context.Context, marketplace domain.Marketplace, profileName string) (*domain.Credential, error) {
	key := domain.CredentialKey{Marketplace: marketplace, ProfileName: domain.ProfileOrDefault(profileName)}

	cred, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !cred.NeedsRefresh(s.now(), s.margin) {
		s.metrics.RefreshCompleted(marketplace, driven.OutcomeSkipped, 0)
		return cred, nil
	}

	return s.refresh(ctx, key, func(c *domain.Credential) bool {
		return c.NeedsRefresh(s.now(), s.margin)
	})
}

// HandleUnauthorized refreshes after a provider rejected rejectedAccessToken,
// unless the stored token already changed.
func (s *credentialService) HandleUnauthorized(ctx context.Context, marketplace domain.Marketplace, profileName, rejectedAccessToken string) (*domain.Credential, error) {
	key := domain.CredentialKey{Marketplace: marketplace, ProfileName: domain.ProfileOrDefault(profileName)}

	stale := func(c *domain.Credential) bool {
		return rejectedAccessToken == "" || c.AccessToken() == rejectedAccessToken
	}

	cred, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !stale(cred) {
		s.metrics.RefreshCompleted(marketplace, driven.OutcomeShared, 0)
		return cred, nil
	}
	return s.refresh(ctx, key, stale)
}

// Refresh forces a refresh of the current access token. Concurrent callers
// share the first refresh.
func (s *credentialService) Refresh(ctx context.Context, marketplace domain.Marketplace, profileName string) (*domain.Credential, error) {
	key := domain.CredentialKey{Marketplace: marketplace, ProfileName: domain.ProfileOrDefault(profileName)}

	cred, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	current := cred.AccessToken()
	return s.refresh(ctx, key, func(c *domain.Credential) bool {
		return c.AccessToken() == current
	})
}

// load reads an active credential.
func (s *credentialService) load(ctx context.Context, key domain.CredentialKey) (*domain.Credential, error) {
	if _, err := s.providers.Provider(key.Marketplace); err != nil {
		return nil, err
	}
	cred, err := s.store.Get(ctx, key.Marketplace, key.ProfileName)
	if err != nil {
		return nil, fmt.Errorf("load credential %s: %w", key, err)
	}
	if !cred.IsActive {
		return nil, fmt.Errorf("%w: credential %s is inactive", domain.ErrReauthorizationRequired, key)
	}
	return cred, nil
}

// refresh runs at most one refresh per key in this process. Callers arriving
// while a refresh is in flight share its result. The shared refresh is
// detached from the first caller's cancellation and bounded by the refresh
// timeout; each caller stops waiting when its own ctx ends.
func (s *credentialService) refresh(ctx context.Context, key domain.CredentialKey, stale func(*domain.Credential) bool) (*domain.Credential, error) {
	ch := s.group.DoChan(key.String(), func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.refreshLeased(shared, key, stale)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*domain.Credential).Clone(), nil
	}
}

// refreshLeased takes the cross-instance lease, re-reads the credential and
// only calls the provider if it is still stale. The provider call runs
// under a context that ends if the lease is lost.
func (s *credentialService) refreshLeased(ctx context.Context, key domain.CredentialKey, stale func(*domain.Credential) bool) (*domain.Credential, error) {
	callCtx := ctx
	if s.lock != nil {
		name := "refresh:" + key.String()
		acquired, err := s.acquireLease(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("%w: acquire refresh lease: %w", domain.ErrStoreUnavailable, err)
		}
		if !acquired {
			cred, err := s.load(ctx, key)
			if err == nil && !stale(cred) {
				s.metrics.RefreshCompleted(key.Marketplace, driven.OutcomeShared, 0)
				return cred, nil
			}
			return nil, fmt.Errorf("%w: %s", domain.ErrRefreshInProgress, key)
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), name); err != nil {
				s.logger.Warn("failed to release refresh lease", "lease", name, "error", err)
			}
		}()

		var stop func()
		callCtx, stop = s.holdLease(ctx, name)
		defer stop()
	}

	cred, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !stale(cred) {
		s.metrics.RefreshCompleted(key.Marketplace, driven.OutcomeShared, 0)
		return cred, nil
	}

	start := time.Now()
	res, err := s.refreshWithRetry(callCtx, cred)
	if err != nil && callCtx.Err() != nil && ctx.Err() == nil {
		err = context.Cause(callCtx)
	}
	if err != nil {
		if errors.Is(err, domain.ErrReauthorizationRequired) {
			s.metrics.RefreshCompleted(key.Marketplace, driven.OutcomeReauth, time.Since(start))
			return nil, s.deactivateAfterRejection(ctx, key, err)
		}
		s.metrics.RefreshCompleted(key.Marketplace, driven.OutcomeFailed, time.Since(start))
		s.logger.Error("credential refresh failed",
			"marketplace", key.Marketplace,
			"profile", key.ProfileName,
			"error", err,
		)
		return nil, err
	}

	now := s.now()
	updated := cred.Clone()
	if updated.Secrets == nil {
		updated.Secrets = map[string]string{}
	}
	updated.Secrets[domain.SecretAccessToken] = res.AccessToken
	updated.Secrets[domain.SecretRefreshToken] = res.RefreshToken
	updated.ExpiresAt = res.ExpiresAt
	updated.LastRefreshedAt = &now
	if res.TokenType != "" {
		updated.TokenType = res.TokenType
	}
	if len(res.Scopes) > 0 {
		updated.Scopes = res.Scopes
	}
	if err := s.store.UpdateTokens(ctx, updated); err != nil {
		if errors.Is(err, domain.ErrCredentialChanged) {
			return s.afterConflict(ctx, key, stale, start)
		}
		s.metrics.RefreshCompleted(key.Marketplace, driven.OutcomeFailed, time.Since(start))
		return nil, fmt.Errorf("persist refreshed credential %s: %w", key, err)
	}

	s.metrics.RefreshCompleted(key.Marketplace, driven.OutcomeSuccess, time.Since(start))
	s.logger.Info("credential refreshed",
		"marketplace", key.Marketplace,
		"profile", key.ProfileName,
		"expires_at", updated.ExpiresAt,
		"rotated", res.RefreshToken != cred.RefreshToken(),
	)
	return updated, nil
}

// afterConflict handles a refresh whose result could not be saved because
// the credential was deactivated or rewritten meanwhile. The stored record
// wins: it is returned if usable, and never overwritten.
func (s *credentialService) afterConflict(ctx context.Context, key domain.CredentialKey, stale func(*domain.Credential) bool, start time.Time) (*domain.Credential, error) {
	s.logger.Warn("credential changed during refresh, discarding refreshed tokens",
		"marketplace", key.Marketplace,
		"profile", key.ProfileName,
	)
	cred, err := s.load(ctx, key)
	if err != nil {
		s.metrics.RefreshCompleted(key.Marketplace, driven.OutcomeFailed, time.Since(start))
		return nil, err
	}
	if !stale(cred) {
		s.metrics.RefreshCompleted(key.Marketplace, driven.OutcomeShared, time.Since(start))
		return cred, nil
	}
	s.metrics.RefreshCompleted(key.Marketplace, driven.OutcomeFailed, time.Since(start))
	return nil, fmt.Errorf("%w: %s", domain.ErrCredentialChanged, key)
}

// holdLease extends the lease every third of its TTL until stop is called.
// The returned context is cancelled, with the cause set, if an extension
// fails.
func (s *credentialService) holdLease(ctx context.Context, name string) (context.Context, func()) {
	leaseCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		tick := time.NewTicker(s.leaseTTL / 3)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-leaseCtx.Done():
				return
			case <-tick.C:
				if err := s.lock.Extend(leaseCtx, name, s.leaseTTL); err != nil {
					s.logger.Warn("refresh lease lost, aborting refresh", "lease", name, "error", err)
					cancel(fmt.Errorf("%w: lease %s lost: %w", domain.ErrRefreshInProgress, name, err))
					return
				}
			}
		}
	}()

	return leaseCtx, func() {
		close(done)
		wg.Wait()
		cancel(nil)
	}
}

// refreshWithRetry retries transient provider failures with exponential backoff.
func (s *credentialService) refreshWithRetry(ctx context.Context, cred *domain.Credential) (*domain.TokenResult, error) {
	provider, err := s.exchanger.ProviderFor(cred)
	if err != nil {
		return nil, err
	}

	op := func() (*domain.TokenResult, error) {
		res, err := s.exchanger.Refresh(ctx, provider, cred)
		if err == nil {
			return res, nil
		}
		if !domain.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	notify := func(err error, next time.Duration) {
		s.logger.Warn("transient refresh failure, retrying",
			"marketplace", cred.Marketplace,
			"profile", cred.ProfileName,
			"retry_in", next,
			"error", err,
		)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.initialDelay

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(s.maxAttempts),
		backoff.WithNotify(notify),
	)
}

// deactivateAfterRejection marks the credential inactive once the provider
// refused its refresh token.
func (s *credentialService) deactivateAfterRejection(ctx context.Context, key domain.CredentialKey, cause error) error {
	s.logger.Warn("refresh token rejected, deactivating credential",
		"marketplace", key.Marketplace,
		"profile", key.ProfileName,
		"error", cause,
	)
	if err := s.store.Deactivate(ctx, key.Marketplace, key.ProfileName); err != nil {
		return errors.Join(cause, fmt.Errorf("deactivate credential %s: %w", key, err))
	}
	return cause
}

// acquireLease polls the distributed lock until it is acquired, the wait
// elapses or ctx ends.
func (s *credentialService) acquireLease(ctx context.Context, name string) (bool, error) {
	wait := time.NewTimer(s.leaseWait)
	defer wait.Stop()
	tick := time.NewTicker(leasePollInterval)
	defer tick.Stop()

	for {
		acquired, err := s.lock.Acquire(ctx, name, s.leaseTTL)
		if err != nil || acquired {
			return acquired, err
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-wait.C:
			return false, nil
		case <-tick.C:
		}
	}
}

// Deactivate marks the credential inactive.
func (s *credentialService) Deactivate(ctx context.Context, marketplace domain.Marketplace, profileName string) error {
	if _, err := s.providers.Provider(marketplace); err != nil {
		return err
	}
	profile := domain.ProfileOrDefault(profileName)
	if err := s.store.Deactivate(ctx, marketplace, profile); err != nil {
		return fmt.Errorf("deactivate credential: %w", err)
	}
	s.logger.Info("credential deactivated", "marketplace", marketplace, "profile", profile)
	return nil
}

// Get returns a credential summary.
func (s *credentialService) Get(ctx context.Context, marketplace domain.Marketplace, profileName string) (*domain.CredentialSummary, error) {
	if _, err := s.providers.Provider(marketplace); err != nil {
		return nil, err
	}
	cred, err := s.store.Get(ctx, marketplace, domain.ProfileOrDefault(profileName))
	if err != nil {
		return nil, err
	}
	return cred.ToSummary(s.now(), s.margin), nil
}

// List returns summaries of all credentials.
func (s *credentialService) List(ctx context.Context) ([]*domain.CredentialSummary, error) {
	creds, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	now := s.now()
	out := make([]*domain.CredentialSummary, 0, len(creds))
	for _, c := range creds {
		out = append(out, c.ToSummary(now, s.margin))
	}
	return out, nil
}

// Status reports configuration and credential health per marketplace.
func (s *credentialService) Status(ctx context.Context) ([]*driving.MarketplaceStatus, error) {
	summaries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	byMarketplace := make(map[domain.Marketplace][]*domain.CredentialSummary)
	for _, sum := range summaries {
		byMarketplace[sum.Marketplace] = append(byMarketplace[sum.Marketplace], sum)
	}

	var out []*driving.MarketplaceStatus
	for _, p := range s.providers.Providers() {
		st := &driving.MarketplaceStatus{
			Marketplace: p.Marketplace,
			Configured:  true,
			Credentials: byMarketplace[p.Marketplace],
		}
		if err := validateConfigured(p); err != nil {
			st.Configured = false
			st.ConfigError = err.Error()
		}
		if st.Credentials == nil {
			st.Credentials = []*domain.CredentialSummary{}
		}
		st.Status = aggregateStatus(st.Credentials)
		out = append(out, st)
	}
	return out, nil
}

func validateConfigured(p *domain.ProviderConfig) error {
	resolved, err := p.ForShop("")
	if err != nil {
		return err
	}
	return resolved.Validate()
}

// aggregateStatus reports the worst status among active credentials.
func aggregateStatus(creds []*domain.CredentialSummary) domain.CredentialStatus {
	if len(creds) == 0 {
		return domain.CredentialStatusUnconfigured
	}
	rank := map[domain.CredentialStatus]int{
		domain.CredentialStatusHealthy:  1,
		domain.CredentialStatusExpiring: 2,
		domain.CredentialStatusExpired:  3,
	}
	worst := domain.CredentialStatusInactive
	for _, c := range creds {
		if !c.IsActive {
			continue
		}
		if worst == domain.CredentialStatusInactive || rank[c.Status] > rank[worst] {
			worst = c.Status
		}
	}
	return worst
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
