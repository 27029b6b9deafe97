package services

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/marketlink/internal/core/ports/driving"
)

// fakeClock is a settable clock shared by a service and its ledger.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func etsyProvider() *domain.ProviderConfig {
	p, _ := domain.ProviderDefaults(domain.MarketplaceEtsy)
	p.ClientID = "etsy-keystring"
	p.RedirectURI = "https://cb.example.com/oauth/callback"
	return &p
}

func joomProvider() *domain.ProviderConfig {
	p, _ := domain.ProviderDefaults(domain.MarketplaceJoom)
	p.ClientID = "joom-client"
	p.ClientSecret = "joom-secret"
	p.RedirectURI = "https://cb.example.com/oauth/callback"
	p.Scopes = []string{"read", "write"}
	return &p
}

func shopifyProvider() *domain.ProviderConfig {
	p, _ := domain.ProviderDefaults(domain.MarketplaceShopify)
	p.ClientID = "shopify-client"
	p.ClientSecret = "shopify-secret"
	p.RedirectURI = "https://cb.example.com/oauth/callback"
	return &p
}

// unconfiguredEbay has defaults but no client credentials.
func unconfiguredEbay() *domain.ProviderConfig {
	p, _ := domain.ProviderDefaults(domain.MarketplaceEbay)
	return &p
}

type testDeps struct {
	store    *mocks.MockCredentialStore
	ledger   *mocks.MockStateLedger
	endpoint *mocks.MockTokenEndpoint
	lock     *mocks.MockDistributedLock
	registry *mocks.MockProviderRegistry
	clock    *fakeClock
}

func newTestDeps() *testDeps {
	clock := newFakeClock()
	ledger := mocks.NewMockStateLedger()
	ledger.Now = clock.Now
	return &testDeps{
		store:    mocks.NewMockCredentialStore(),
		ledger:   ledger,
		endpoint: mocks.NewMockTokenEndpoint(),
		lock:     mocks.NewMockDistributedLock(),
		registry: mocks.NewMockProviderRegistry(etsyProvider(), joomProvider(), shopifyProvider(), unconfiguredEbay()),
		clock:    clock,
	}
}

func (d *testDeps) config() CredentialServiceConfig {
	return CredentialServiceConfig{
		Store:               d.store,
		StateLedger:         d.ledger,
		Providers:           d.registry,
		TokenEndpoint:       d.endpoint,
		Lock:                d.lock,
		Logger:              testLogger(),
		RefreshInitialDelay: time.Millisecond,
		LeaseWait:           50 * time.Millisecond,
		Now:                 d.clock.Now,
	}
}

func (d *testDeps) service() driving.CredentialService {
	return NewCredentialService(d.config())
}

func (d *testDeps) seedExpiring(t *testing.T, marketplace domain.Marketplace, expiresIn time.Duration) {
	t.Helper()
	exp := d.clock.Now().Add(expiresIn)
	d.store.Put(&domain.Credential{
		Marketplace: marketplace,
		ProfileName: domain.DefaultProfileName,
		IsActive:    true,
		ExpiresAt:   &exp,
		Secrets: map[string]string{
			domain.SecretAccessToken:  "a0",
			domain.SecretRefreshToken: "r1",
		},
	})
}

func timePtr(t time.Time) *time.Time { return &t }
