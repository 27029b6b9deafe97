package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/marketlink/internal/core/domain"
)

// StateLedger holds pending authorization states until the provider
// redirects back. Records are single-use and expire after a short TTL.
type StateLedger interface {
	// Put stores a state record. ttl bounds how long the backend keeps it.
	// Returns domain.ErrStoreUnavailable when the backend cannot be reached.
	Put(ctx context.Context, state *domain.AuthorizationState, ttl time.Duration) error

	// Consume atomically retrieves and removes the record. Of several
	// concurrent callers exactly one receives it; the rest get
	// domain.ErrStateNotFound. A record past its ExpiresAt is removed and
	// reported as domain.ErrStateExpired even if the backend has not yet
	// purged it.
	Consume(ctx context.Context, state string) (*domain.AuthorizationState, error)

	// Cleanup purges expired records and returns how many were removed.
	Cleanup(ctx context.Context) (int64, error)
}
