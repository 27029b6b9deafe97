package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*FileLock)(nil)

// FileLock implements DistributedLock with one flock(2) file per lease,
// kept in a directory next to the database file. Every process that opens
// the same database shares the leases, and so does every FileLock in one
// process. The TTL is ignored: the kernel drops a lock when its holder
// exits.
type FileLock struct {
	dir string

	mu   sync.Mutex
	held map[string]*flock.Flock
}

// NewFileLock creates a lock whose files live in "<dbPath>.locks".
func NewFileLock(dbPath string) (*FileLock, error) {
	dir := dbPath + ".locks"
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory %s: %w", dir, err)
	}
	return &FileLock{dir: dir, held: make(map[string]*flock.Flock)}, nil
}

func (l *FileLock) path(name string) string {
	return filepath.Join(l.dir, url.QueryEscape(name)+".lock")
}

// Acquire takes the lease without blocking. A lease already held by this
// FileLock is reported as not acquired.
func (l *FileLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[name]; ok {
		return false, nil
	}

	fl := flock.New(l.path(name))
	locked, err := fl.TryLock()
	if err != nil {
		return false, unavailable("acquire file lock "+name, err)
	}
	if !locked {
		return false, nil
	}
	l.held[name] = fl
	return true, nil
}

// Release unlocks the lease. Safe to call when it is not held.
func (l *FileLock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	fl, ok := l.held[name]
	delete(l.held, name)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	if err := fl.Unlock(); err != nil {
		return fmt.Errorf("release file lock %s: %w", name, err)
	}
	return nil
}

// Extend confirms the lease is still held. File locks have no TTL.
func (l *FileLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	fl, ok := l.held[name]
	l.mu.Unlock()

	if !ok || !fl.Locked() {
		return fmt.Errorf("file lock %s not held", name)
	}
	return nil
}

// Ping checks the lock directory is still there.
func (l *FileLock) Ping(ctx context.Context) error {
	if _, err := os.Stat(l.dir); err != nil {
		return unavailable("stat lock directory", err)
	}
	return nil
}
