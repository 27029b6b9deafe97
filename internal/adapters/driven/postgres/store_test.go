package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/marketlink/internal/adapters/driven/secretbox"
	"github.com/custodia-labs/marketlink/internal/core/domain"
)

// testDB connects to MARKETLINK_TEST_DATABASE_URL or skips.
func testDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("MARKETLINK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("MARKETLINK_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Connect(ctx, DefaultConfig(url))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func testEncryptor(t *testing.T) *secretbox.SecretEncryptor {
	t.Helper()
	enc, err := secretbox.NewFromMasterKey("postgres-test-key")
	require.NoError(t, err)
	return enc
}

func TestCredentialStore_UpsertIsIdempotent(t *testing.T) {
	db := testDB(t)
	store := NewCredentialStore(db.DB, testEncryptor(t))
	ctx := context.Background()
	profile := "pg-" + uuid.NewString()

	first := &domain.Credential{
		Marketplace: domain.MarketplaceJoom,
		ProfileName: profile,
		Secrets:     map[string]string{domain.SecretAPIKey: "one"},
		IsActive:    true,
	}
	require.NoError(t, store.Upsert(ctx, first))

	second := &domain.Credential{
		Marketplace: domain.MarketplaceJoom,
		ProfileName: profile,
		Secrets:     map[string]string{domain.SecretAPIKey: "two"},
		IsActive:    true,
		Scopes:      []string{"read"},
	}
	require.NoError(t, store.Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

	got, err := store.Get(ctx, domain.MarketplaceJoom, profile)
	require.NoError(t, err)
	assert.Equal(t, "two", got.Secret(domain.SecretAPIKey))
	assert.Equal(t, []string{"read"}, got.Scopes)
	assert.Nil(t, got.ExpiresAt)

	require.NoError(t, store.Deactivate(ctx, domain.MarketplaceJoom, profile))
	got, err = store.Get(ctx, domain.MarketplaceJoom, profile)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, store.Deactivate(ctx, domain.MarketplaceJoom, "missing-"+profile), domain.ErrNotFound)
	_, err = store.Get(ctx, domain.MarketplaceEtsy, profile)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStateLedger_ConsumeOnce(t *testing.T) {
	db := testDB(t)
	ledger := NewStateLedger(db.DB)
	ctx := context.Background()
	state := uuid.NewString()

	require.NoError(t, ledger.Put(ctx, &domain.AuthorizationState{
		State:        state,
		Marketplace:  domain.MarketplaceEtsy,
		ProfileName:  domain.DefaultProfileName,
		CodeVerifier: "v",
		RedirectURI:  "https://cb",
		Scopes:       []string{"listings_r"},
	}, time.Minute))

	got, err := ledger.Consume(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, "v", got.CodeVerifier)
	assert.Equal(t, []string{"listings_r"}, got.Scopes)

	_, err = ledger.Consume(ctx, state)
	assert.True(t, errors.Is(err, domain.ErrStateNotFound))
}

func TestStateLedger_LogicalExpiry(t *testing.T) {
	db := testDB(t)
	ledger := NewStateLedger(db.DB)
	ctx := context.Background()
	state := uuid.NewString()

	require.NoError(t, ledger.Put(ctx, &domain.AuthorizationState{
		State:       state,
		Marketplace: domain.MarketplaceEtsy,
		ProfileName: domain.DefaultProfileName,
		RedirectURI: "https://cb",
	}, time.Minute))

	ledger.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err := ledger.Consume(ctx, state)
	assert.ErrorIs(t, err, domain.ErrStateExpired)
}

func TestAdvisoryLock_Exclusive(t *testing.T) {
	db := testDB(t)
	a, b := NewAdvisoryLock(db), NewAdvisoryLock(db)
	ctx := context.Background()
	name := "refresh:" + uuid.NewString()

	ok, err := a.Acquire(ctx, name, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Acquire(ctx, name, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock is held by another session")

	require.NoError(t, a.Release(ctx, name))
	ok, err = b.Acquire(ctx, name, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Release(ctx, name))
}

func TestCredentialStore_UpdateTokensGuardsConcurrentWrites(t *testing.T) {
	db := testDB(t)
	store := NewCredentialStore(db.DB, testEncryptor(t))
	ctx := context.Background()
	profile := "pg-" + uuid.NewString()

	require.NoError(t, store.Upsert(ctx, &domain.Credential{
		Marketplace: domain.MarketplaceEtsy,
		ProfileName: profile,
		Secrets:     map[string]string{domain.SecretAccessToken: "a0", domain.SecretRefreshToken: "r1"},
		IsActive:    true,
	}))

	snapshot, err := store.Get(ctx, domain.MarketplaceEtsy, profile)
	require.NoError(t, err)

	refreshed := snapshot.Clone()
	refreshed.Secrets[domain.SecretAccessToken] = "a1"
	require.NoError(t, store.UpdateTokens(ctx, refreshed))

	got, err := store.Get(ctx, domain.MarketplaceEtsy, profile)
	require.NoError(t, err)
	assert.Equal(t, "a1", got.AccessToken())
	assert.True(t, got.UpdatedAt.Equal(refreshed.UpdatedAt))

	// The first snapshot is now stale.
	stale := snapshot.Clone()
	stale.Secrets[domain.SecretAccessToken] = "lost"
	assert.ErrorIs(t, store.UpdateTokens(ctx, stale), domain.ErrCredentialChanged)

	require.NoError(t, store.Deactivate(ctx, domain.MarketplaceEtsy, profile))
	assert.ErrorIs(t, store.UpdateTokens(ctx, refreshed), domain.ErrCredentialChanged)

	got, err = store.Get(ctx, domain.MarketplaceEtsy, profile)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, "a1", got.AccessToken())
}

func TestAdvisoryLock_Extend(t *testing.T) {
	db := testDB(t)
	lock := NewAdvisoryLock(db)
	ctx := context.Background()
	name := "refresh:" + uuid.NewString()

	assert.Error(t, lock.Extend(ctx, name, time.Minute), "extending an unheld lock fails")

	ok, err := lock.Acquire(ctx, name, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NoError(t, lock.Extend(ctx, name, time.Minute))

	require.NoError(t, lock.Release(ctx, name))
	assert.Error(t, lock.Extend(ctx, name, time.Minute))
}
