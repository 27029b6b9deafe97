package driven

import (
	"context"

	"github.com/custodia-labs/marketlink/internal/core/domain"
)

// CredentialStore persists marketplace credentials with encrypted secrets.
// There is at most one credential per (marketplace, profile).
type CredentialStore interface {
	// Get retrieves the credential for a marketplace profile with decrypted secrets.
	// Returns domain.ErrNotFound if none exists.
	Get(ctx context.Context, marketplace domain.Marketplace, profileName string) (*domain.Credential, error)

	// Upsert atomically inserts or replaces the credential for its
	// (marketplace, profile). ID and CreatedAt are assigned on first insert and
	// written back into cred; later upserts keep them.
	Upsert(ctx context.Context, cred *domain.Credential) error

	// UpdateTokens writes the secrets and token fields of cred only if the
	// stored row is still active and its UpdatedAt equals cred.UpdatedAt.
	// On success cred.UpdatedAt is set to the new value. Returns
	// domain.ErrCredentialChanged when the guard does not match, including
	// when the credential no longer exists.
	UpdateTokens(ctx context.Context, cred *domain.Credential) error

	// Deactivate marks the credential inactive. Secrets are kept.
	// Returns domain.ErrNotFound if none exists.
	Deactivate(ctx context.Context, marketplace domain.Marketplace, profileName string) error

	// List returns all credentials with decrypted secrets, ordered by
	// marketplace then profile.
	List(ctx context.Context) ([]*domain.Credential, error)

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}
