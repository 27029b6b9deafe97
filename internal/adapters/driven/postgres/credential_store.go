package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/custodia-labs/marketlink/internal/adapters/driven/secretbox"
	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// Ensure CredentialStore implements the interface.
var _ driven.CredentialStore = (*CredentialStore)(nil)

// CredentialStore implements driven.CredentialStore using PostgreSQL.
// Secrets are stored as one AES-GCM blob bound to the credential key.
type CredentialStore struct {
	db        *sql.DB
	encryptor *secretbox.SecretEncryptor
	now       func() time.Time
}

// NewCredentialStore creates a new PostgreSQL-backed credential store.
func NewCredentialStore(db *sql.DB, encryptor *secretbox.SecretEncryptor) *CredentialStore {
	return &CredentialStore{
		db:        db,
		encryptor: encryptor,
		now:       time.Now,
	}
}

const credentialColumns = `id, marketplace, profile_name, secret_blob, is_active, expires_at,
	token_type, scopes, last_refreshed_at, created_at, updated_at`

// Get retrieves the credential for (marketplace, profile).
func (s *CredentialStore) Get(ctx context.Context, marketplace domain.Marketplace, profileName string) (*domain.Credential, error) {
	query := `SELECT ` + credentialColumns + `
		FROM marketplace_credentials
		WHERE marketplace = $1 AND profile_name = $2`

	cred, err := s.scan(s.db.QueryRowContext(ctx, query, marketplace, profileName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// Upsert inserts or replaces the credential in one statement. The stored
// ID and creation time are written back into cred.
func (s *CredentialStore) Upsert(ctx context.Context, cred *domain.Credential) error {
	cred.ProfileName = domain.ProfileOrDefault(cred.ProfileName)
	blob, err := s.encryptor.EncryptSecrets(cred.Secrets, cred.Key().String())
	if err != nil {
		return fmt.Errorf("encrypt secrets: %w", err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	query := `
		INSERT INTO marketplace_credentials (
			id, marketplace, profile_name, secret_blob, is_active, expires_at,
			token_type, scopes, last_refreshed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (marketplace, profile_name) DO UPDATE SET
			secret_blob = EXCLUDED.secret_blob,
			is_active = EXCLUDED.is_active,
			expires_at = EXCLUDED.expires_at,
			token_type = EXCLUDED.token_type,
			scopes = EXCLUDED.scopes,
			last_refreshed_at = EXCLUDED.last_refreshed_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	var createdAt time.Time
	err = s.db.QueryRowContext(ctx, query,
		cred.ID,
		cred.Marketplace,
		cred.ProfileName,
		blob,
		cred.IsActive,
		NullTime(cred.ExpiresAt),
		cred.TokenType,
		pq.Array(nonNil(cred.Scopes)),
		NullTime(cred.LastRefreshedAt),
		cred.CreatedAt,
		cred.UpdatedAt,
	).Scan(&cred.ID, &createdAt)
	if err != nil {
		return unavailable("upsert credential", err)
	}
	cred.CreatedAt = createdAt.UTC()
	return nil
}

// UpdateTokens writes refreshed token fields if the row is unchanged since
// cred was read. updated_at acts as the row version.
func (s *CredentialStore) UpdateTokens(ctx context.Context, cred *domain.Credential) error {
	blob, err := s.encryptor.EncryptSecrets(cred.Secrets, cred.Key().String())
	if err != nil {
		return fmt.Errorf("encrypt secrets: %w", err)
	}

	// Truncated to the column's precision so the value can guard the next write.
	now := s.now().UTC().Truncate(time.Microsecond)

	query := `
		UPDATE marketplace_credentials
		SET secret_blob = $1,
			expires_at = $2,
			token_type = $3,
			scopes = $4,
			last_refreshed_at = $5,
			updated_at = $6
		WHERE marketplace = $7 AND profile_name = $8
			AND is_active AND updated_at = $9
	`
	result, err := s.db.ExecContext(ctx, query,
		blob,
		NullTime(cred.ExpiresAt),
		cred.TokenType,
		pq.Array(nonNil(cred.Scopes)),
		NullTime(cred.LastRefreshedAt),
		now,
		cred.Marketplace,
		cred.ProfileName,
		cred.UpdatedAt,
	)
	if err != nil {
		return unavailable("update credential tokens", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return unavailable("update credential tokens", err)
	}
	if rows == 0 {
		return domain.ErrCredentialChanged
	}
	cred.UpdatedAt = now
	return nil
}

// Deactivate marks the credential inactive.
func (s *CredentialStore) Deactivate(ctx context.Context, marketplace domain.Marketplace, profileName string) error {
	query := `
		UPDATE marketplace_credentials
		SET is_active = FALSE, updated_at = $3
		WHERE marketplace = $1 AND profile_name = $2
	`
	result, err := s.db.ExecContext(ctx, query, marketplace, profileName, s.now().UTC())
	if err != nil {
		return unavailable("deactivate credential", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return unavailable("deactivate credential", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns all credentials ordered by marketplace and profile.
func (s *CredentialStore) List(ctx context.Context) ([]*domain.Credential, error) {
	query := `SELECT ` + credentialColumns + `
		FROM marketplace_credentials
		ORDER BY marketplace, profile_name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, unavailable("list credentials", err)
	}
	defer rows.Close()

	var creds []*domain.Credential
	for rows.Next() {
		cred, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list credentials", err)
	}
	return creds, nil
}

// Ping checks the database connection.
func (s *CredentialStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *CredentialStore) scan(row scanner) (*domain.Credential, error) {
	var (
		cred          domain.Credential
		blob          []byte
		expiresAt     sql.NullTime
		lastRefreshed sql.NullTime
		scopes        pq.StringArray
	)
	err := row.Scan(
		&cred.ID,
		&cred.Marketplace,
		&cred.ProfileName,
		&blob,
		&cred.IsActive,
		&expiresAt,
		&cred.TokenType,
		&scopes,
		&lastRefreshed,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, unavailable("scan credential", err)
	}

	cred.Secrets, err = s.encryptor.DecryptSecrets(blob, cred.Key().String())
	if err != nil {
		return nil, fmt.Errorf("decrypt secrets for %s: %w", cred.Key(), err)
	}
	cred.ExpiresAt = TimePtr(expiresAt)
	cred.LastRefreshedAt = TimePtr(lastRefreshed)
	cred.CreatedAt = cred.CreatedAt.UTC()
	cred.UpdatedAt = cred.UpdatedAt.UTC()
	if len(scopes) > 0 {
		cred.Scopes = []string(scopes)
	}
	return &cred, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
