package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// Ensure StateLedger implements the interface.
var _ driven.StateLedger = (*StateLedger)(nil)

// StateLedger implements driven.StateLedger using PostgreSQL.
// Expiry is checked on read; rows are physically removed by Cleanup.
type StateLedger struct {
	db  *sql.DB
	now func() time.Time
}

// NewStateLedger creates a new PostgreSQL-backed state ledger.
func NewStateLedger(db *sql.DB) *StateLedger {
	return &StateLedger{db: db, now: time.Now}
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

	query := `
		INSERT INTO authorization_states (
			state, marketplace, profile_name, code_verifier, redirect_uri,
			scopes, shop_domain, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		st.State,
		st.Marketplace,
		st.ProfileName,
		st.CodeVerifier,
		st.RedirectURI,
		pq.Array(nonNil(st.Scopes)),
		st.ShopDomain,
		st.CreatedAt,
		st.ExpiresAt,
	)
	if err != nil {
		return unavailable("save authorization state", err)
	}
	return nil
}

// Consume atomically removes and returns the state. DELETE ... RETURNING
// gives single-use semantics across concurrent callbacks.
func (s *StateLedger) Consume(ctx context.Context, state string) (*domain.AuthorizationState, error) {
	query := `
		DELETE FROM authorization_states
		WHERE state = $1
		RETURNING state, marketplace, profile_name, code_verifier, redirect_uri,
			scopes, shop_domain, created_at, expires_at
	`

	var (
		st     domain.AuthorizationState
		scopes pq.StringArray
	)
	err := s.db.QueryRowContext(ctx, query, state).Scan(
		&st.State,
		&st.Marketplace,
		&st.ProfileName,
		&st.CodeVerifier,
		&st.RedirectURI,
		&scopes,
		&st.ShopDomain,
		&st.CreatedAt,
		&st.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, unavailable("consume authorization state", err)
	}

	if st.IsExpired(s.now()) {
		return nil, domain.ErrStateExpired
	}
	if len(scopes) > 0 {
		st.Scopes = []string(scopes)
	}
	st.CreatedAt = st.CreatedAt.UTC()
	st.ExpiresAt = st.ExpiresAt.UTC()
	return &st, nil
}

// Cleanup removes expired states and returns how many were removed.
func (s *StateLedger) Cleanup(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM authorization_states WHERE expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, unavailable("cleanup authorization states", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup authorization states: %w", err)
	}
	return n, nil
}
