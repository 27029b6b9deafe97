package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// Ensure MockStateLedger implements StateLedger
var _ driven.StateLedger = (*MockStateLedger)(nil)

// MockStateLedger is an in-memory StateLedger with an injectable clock.
type MockStateLedger struct {
	mu     sync.Mutex
	states map[string]domain.AuthorizationState

	Now    func() time.Time
	PutErr error

	ConsumeCalls int
}

// NewMockStateLedger creates a new MockStateLedger
func NewMockStateLedger() *MockStateLedger {
	return &MockStateLedger{
		states: make(map[string]domain.AuthorizationState),
		Now:    time.Now,
	}
}

func (m *MockStateLedger) Put(ctx context.Context, st *domain.AuthorizationState, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PutErr != nil {
		return m.PutErr
	}
	m.states[st.State] = *st
	return nil
}

func (m *MockStateLedger) Consume(ctx context.Context, state string) (*domain.AuthorizationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConsumeCalls++
	st, ok := m.states[state]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	delete(m.states, state)
	if st.IsExpired(m.Now()) {
		return nil, domain.ErrStateExpired
	}
	return &st, nil
}

func (m *MockStateLedger) Cleanup(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	now := m.Now()
	for k, st := range m.states {
		if st.IsExpired(now) {
			delete(m.states, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of pending states.
func (m *MockStateLedger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}
