package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// Ensure MockDistributedLock implements DistributedLock
var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// MockDistributedLock simulates leases with in-memory state.
// Hooks override the default behavior when set.
type MockDistributedLock struct {
	mu     sync.Mutex
	leases map[string]time.Time // name -> expiry

	AcquireFn func(name string, ttl time.Duration) (bool, error)
	ReleaseFn func(name string) error
	ExtendFn  func(name string, ttl time.Duration) error
	PingFn    func() error

	acquired map[string]int
	released map[string]int
	extended map[string]int
}

// NewMockDistributedLock creates a new mock distributed lock.
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{
		leases:   make(map[string]time.Time),
		acquired: make(map[string]int),
		released: make(map[string]int),
		extended: make(map[string]int),
	}
}

// Acquire takes the lease unless it is held and unexpired.
func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if m.AcquireFn != nil {
		return m.AcquireFn(name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if expiry, held := m.leases[name]; held && time.Now().Before(expiry) {
		return false, nil
	}
	m.leases[name] = time.Now().Add(ttl)
	m.acquired[name]++
	return true, nil
}

// Release drops the lease.
func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	if m.ReleaseFn != nil {
		return m.ReleaseFn(name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.leases, name)
	m.released[name]++
	return nil
}

// Extend pushes out the expiry of a held lease.
func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	if m.ExtendFn != nil {
		return m.ExtendFn(name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.extended[name]++
	expiry, held := m.leases[name]
	if !held || time.Now().After(expiry) {
		return fmt.Errorf("lock %s not held", name)
	}
	m.leases[name] = time.Now().Add(ttl)
	return nil
}

// Ping checks backend health.
func (m *MockDistributedLock) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

// IsHeld checks if a lease is currently held (for test assertions).
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, held := m.leases[name]
	return held && time.Now().Before(expiry)
}

// HoldElsewhere marks a lease as held by another instance (for test setup).
func (m *MockDistributedLock) HoldElsewhere(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases[name] = time.Now().Add(ttl)
}

// Acquired returns how many times name was acquired by this process.
func (m *MockDistributedLock) Acquired(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquired[name]
}

// Released returns how many times name was released.
func (m *MockDistributedLock) Released(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released[name]
}

// Extended returns how many times name was extended.
func (m *MockDistributedLock) Extended(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extended[name]
}
