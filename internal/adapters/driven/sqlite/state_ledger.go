package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// Ensure StateLedger implements the interface.
var _ driven.StateLedger = (*StateLedger)(nil)

// StateLedger implements driven.StateLedger on SQLite.
type StateLedger struct {
	db  *sql.DB
	now func() time.Time
}

// NewStateLedger creates a SQLite-backed state ledger.
func NewStateLedger(db *DB) *StateLedger {
	return &StateLedger{db: db.DB, now: time.Now}
}

// Put stores a new authorization state.
func (s *StateLedger) Put(ctx context.Context, st *domain.AuthorizationState, ttl time.Duration) error {
	now := s.now().UTC()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	if st.ExpiresAt.IsZero() {
		st.ExpiresAt = st.CreatedAt.Add(ttl)
	}
	scopes, err := json.Marshal(nonNil(st.Scopes))
	if err != nil {
		return fmt.Errorf("marshal scopes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO authorization_states (
			state, marketplace, profile_name, code_verifier, redirect_uri,
			scopes, shop_domain, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.State,
		string(st.Marketplace),
		st.ProfileName,
		st.CodeVerifier,
		st.RedirectURI,
		string(scopes),
		st.ShopDomain,
		formatTime(st.CreatedAt),
		formatTime(st.ExpiresAt),
	)
	if err != nil {
		return unavailable("save authorization state", err)
	}
	return nil
}

// Consume atomically removes and returns the state.
func (s *StateLedger) Consume(ctx context.Context, state string) (*domain.AuthorizationState, error) {
	var (
		st                   domain.AuthorizationState
		marketplace, scopes  string
		createdAt, expiresAt string
	)
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM authorization_states
		WHERE state = ?
		RETURNING state, marketplace, profile_name, code_verifier, redirect_uri,
			scopes, shop_domain, created_at, expires_at`, state).Scan(
		&st.State,
		&marketplace,
		&st.ProfileName,
		&st.CodeVerifier,
		&st.RedirectURI,
		&scopes,
		&st.ShopDomain,
		&createdAt,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, unavailable("consume authorization state", err)
	}

	st.Marketplace = domain.Marketplace(marketplace)
	if st.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("decode expires_at: %w", err)
	}
	if st.IsExpired(s.now()) {
		return nil, domain.ErrStateExpired
	}
	if st.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(scopes), &st.Scopes); err != nil {
		return nil, fmt.Errorf("decode scopes: %w", err)
	}
	if len(st.Scopes) == 0 {
		st.Scopes = nil
	}
	return &st, nil
}

// Cleanup removes expired states and returns how many were removed.
func (s *StateLedger) Cleanup(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM authorization_states WHERE expires_at <= ?`, formatTime(s.now()))
	if err != nil {
		return 0, unavailable("cleanup authorization states", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup authorization states: %w", err)
	}
	return n, nil
}
