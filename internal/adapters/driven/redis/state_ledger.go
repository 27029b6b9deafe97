// Package redis provides Redis-backed coordination for multi-instance
// deployments: refresh leases and the authorization state ledger.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.StateLedger = (*StateLedger)(nil)

const (
	keyPrefix   = "marketlink:"
	statePrefix = keyPrefix + "oauth_state:"

	// stateGrace keeps a record around past its logical expiry so a late
	// callback is reported as expired rather than unknown.
	stateGrace = 5 * time.Minute

	cleanupScanCount = 100
)

// StateLedger implements driven.StateLedger using Redis.
// Consumption uses GETDEL so exactly one caller receives a record.
type StateLedger struct {
	client *redis.Client
	now    func() time.Time
}

// NewStateLedger creates a new Redis-backed state ledger.
func NewStateLedger(client *redis.Client) *StateLedger {
	return &StateLedger{client: client, now: time.Now}
}

// Put stores the state as JSON with a TTL of ttl plus a grace period.
func (s *StateLedger) Put(ctx context.Context, st *domain.AuthorizationState, ttl time.Duration) error {
	now := s.now().UTC()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	if st.ExpiresAt.IsZero() {
		st.ExpiresAt = st.CreatedAt.Add(ttl)
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal authorization state: %w", err)
	}

	ok, err := s.client.SetNX(ctx, statePrefix+st.State, data, ttl+stateGrace).Result()
	if err != nil {
		return fmt.Errorf("%w: save authorization state: %w", domain.ErrStoreUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("authorization state %q already exists", st.State)
	}
	return nil
}

// Consume atomically removes and returns the state.
func (s *StateLedger) Consume(ctx context.Context, state string) (*domain.AuthorizationState, error) {
	data, err := s.client.GetDel(ctx, statePrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: consume authorization state: %w", domain.ErrStoreUnavailable, err)
	}

	var st domain.AuthorizationState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization state: %w", err)
	}
	if st.IsExpired(s.now()) {
		return nil, domain.ErrStateExpired
	}
	return &st, nil
}

// Cleanup removes states past their logical expiry. Redis purges the rest
// on its own once the grace period ends.
func (s *StateLedger) Cleanup(ctx context.Context) (int64, error) {
	now := s.now()
	var removed int64

	iter := s.client.Scan(ctx, 0, statePrefix+"*", cleanupScanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("%w: cleanup authorization states: %w", domain.ErrStoreUnavailable, err)
		}

		var st domain.AuthorizationState
		if err := json.Unmarshal(data, &st); err == nil && !st.IsExpired(now) {
			continue
		}

		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: cleanup authorization states: %w", domain.ErrStoreUnavailable, err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: cleanup authorization states: %w", domain.ErrStoreUnavailable, err)
	}
	return removed, nil
}
