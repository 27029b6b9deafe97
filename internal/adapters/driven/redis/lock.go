package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = keyPrefix + "lock:"

// Lock implements DistributedLock with expiring Redis keys. It guards
// token refreshes and maintenance cycles across instances.
//
// Each acquisition writes a fresh fencing token as the key's value.
// Release and Extend act only while the key still carries that token, so a
// holder whose lease lapsed can neither delete nor prolong the lease that
// replaced it.
type Lock struct {
	client *redis.Client

	mu     sync.Mutex
	tokens map[string]string // lease name -> fencing token
}

// NewLock creates a Redis-backed lease lock.
func NewLock(client *redis.Client) *Lock {
	return &Lock{client: client, tokens: make(map[string]string)}
}

// deleteIfOwned removes KEYS[1] when it still holds ARGV[1].
var deleteIfOwned = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
return redis.call("DEL", KEYS[1])
`)

// expireIfOwned resets the TTL of KEYS[1] to ARGV[2] ms when it still
// holds ARGV[1].
var expireIfOwned = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
return redis.call("PEXPIRE", KEYS[1], ARGV[2])
`)

// Acquire takes the lease for ttl if nobody holds it.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockPrefix+name, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: acquire lease %s: %w", domain.ErrStoreUnavailable, name, err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[name] = token
	l.mu.Unlock()
	return true, nil
}

// Release gives up the lease if this Lock still holds it. A lapsed or
// unknown lease is not an error.
func (l *Lock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	token, ok := l.tokens[name]
	delete(l.tokens, name)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	if err := deleteIfOwned.Run(ctx, l.client, []string{lockPrefix + name}, token).Err(); err != nil {
		return fmt.Errorf("%w: release lease %s: %w", domain.ErrStoreUnavailable, name, err)
	}
	return nil
}

// Extend resets the lease TTL. It fails once the lease has lapsed or been
// taken over, and the lease is then forgotten.
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	token, ok := l.tokens[name]
	l.mu.Unlock()

	if !ok {
		return fmt.Errorf("lease %s not held", name)
	}

	extended, err := expireIfOwned.Run(ctx, l.client, []string{lockPrefix + name}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: extend lease %s: %w", domain.ErrStoreUnavailable, name, err)
	}
	if extended == 0 {
		l.mu.Lock()
		if l.tokens[name] == token {
			delete(l.tokens, name)
		}
		l.mu.Unlock()
		return fmt.Errorf("lease %s lapsed or was taken over", name)
	}
	return nil
}

// Ping checks Redis is reachable.
func (l *Lock) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}
