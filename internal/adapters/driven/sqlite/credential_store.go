package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/marketlink/internal/adapters/driven/secretbox"
	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driven"
)

// Ensure CredentialStore implements the interface.
var _ driven.CredentialStore = (*CredentialStore)(nil)

// CredentialStore implements driven.CredentialStore on SQLite.
type CredentialStore struct {
	db        *sql.DB
	encryptor *secretbox.SecretEncryptor
	now       func() time.Time
}

// NewCredentialStore creates a SQLite-backed credential store.
func NewCredentialStore(db *DB, encryptor *secretbox.SecretEncryptor) *CredentialStore {
	return &CredentialStore{db: db.DB, encryptor: encryptor, now: time.Now}
}

const credentialColumns = `id, marketplace, profile_name, secret_blob, is_active, expires_at,
	token_type, scopes, last_refreshed_at, created_at, updated_at`

// Get retrieves the credential for (marketplace, profile).
func (s *CredentialStore) Get(ctx context.Context, marketplace domain.Marketplace, profileName string) (*domain.Credential, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+credentialColumns+`
		FROM marketplace_credentials
		WHERE marketplace = ? AND profile_name = ?`, string(marketplace), profileName)

	cred, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return cred, err
}

// Upsert inserts or replaces the credential in one statement.
func (s *CredentialStore) Upsert(ctx context.Context, cred *domain.Credential) error {
	cred.ProfileName = domain.ProfileOrDefault(cred.ProfileName)
	blob, err := s.encryptor.EncryptSecrets(cred.Secrets, cred.Key().String())
	if err != nil {
		return fmt.Errorf("encrypt secrets: %w", err)
	}
	scopes, err := json.Marshal(nonNil(cred.Scopes))
	if err != nil {
		return fmt.Errorf("marshal scopes: %w", err)
	}

	now := s.now().UTC()
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	var id, createdAt string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO marketplace_credentials (
			id, marketplace, profile_name, secret_blob, is_active, expires_at,
			token_type, scopes, last_refreshed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (marketplace, profile_name) DO UPDATE SET
			secret_blob = excluded.secret_blob,
			is_active = excluded.is_active,
			expires_at = excluded.expires_at,
			token_type = excluded.token_type,
			scopes = excluded.scopes,
			last_refreshed_at = excluded.last_refreshed_at,
			updated_at = excluded.updated_at
		RETURNING id, created_at`,
		cred.ID,
		string(cred.Marketplace),
		cred.ProfileName,
		blob,
		cred.IsActive,
		formatTimePtr(cred.ExpiresAt),
		cred.TokenType,
		string(scopes),
		formatTimePtr(cred.LastRefreshedAt),
		formatTime(cred.CreatedAt),
		formatTime(cred.UpdatedAt),
	).Scan(&id, &createdAt)
	if err != nil {
		return unavailable("upsert credential", err)
	}

	cred.ID = id
	if t, err := parseTime(createdAt); err == nil {
		cred.CreatedAt = t
	}
	return nil
}

// UpdateTokens writes refreshed token fields if the row is unchanged since
// cred was read.
func (s *CredentialStore) UpdateTokens(ctx context.Context, cred *domain.Credential) error {
	blob, err := s.encryptor.EncryptSecrets(cred.Secrets, cred.Key().String())
	if err != nil {
		return fmt.Errorf("encrypt secrets: %w", err)
	}
	scopes, err := json.Marshal(nonNil(cred.Scopes))
	if err != nil {
		return fmt.Errorf("marshal scopes: %w", err)
	}

	now := s.now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE marketplace_credentials
		SET secret_blob = ?, expires_at = ?, token_type = ?, scopes = ?,
			last_refreshed_at = ?, updated_at = ?
		WHERE marketplace = ? AND profile_name = ?
			AND is_active = 1 AND updated_at = ?`,
		blob,
		formatTimePtr(cred.ExpiresAt),
		cred.TokenType,
		string(scopes),
		formatTimePtr(cred.LastRefreshedAt),
		formatTime(now),
		string(cred.Marketplace),
		cred.ProfileName,
		formatTime(cred.UpdatedAt),
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
	result, err := s.db.ExecContext(ctx, `
		UPDATE marketplace_credentials
		SET is_active = 0, updated_at = ?
		WHERE marketplace = ? AND profile_name = ?`,
		formatTime(s.now()), string(marketplace), profileName)
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
	rows, err := s.db.QueryContext(ctx, `SELECT `+credentialColumns+`
		FROM marketplace_credentials
		ORDER BY marketplace, profile_name`)
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
		cred                 domain.Credential
		marketplace          string
		blob                 []byte
		expiresAt, refreshed sql.NullString
		scopes               string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&cred.ID,
		&marketplace,
		&cred.ProfileName,
		&blob,
		&cred.IsActive,
		&expiresAt,
		&cred.TokenType,
		&scopes,
		&refreshed,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, unavailable("scan credential", err)
	}
	cred.Marketplace = domain.Marketplace(marketplace)

	cred.Secrets, err = s.encryptor.DecryptSecrets(blob, cred.Key().String())
	if err != nil {
		return nil, fmt.Errorf("decrypt secrets for %s: %w", cred.Key(), err)
	}
	if err := json.Unmarshal([]byte(scopes), &cred.Scopes); err != nil {
		return nil, fmt.Errorf("decode scopes for %s: %w", cred.Key(), err)
	}
	if len(cred.Scopes) == 0 {
		cred.Scopes = nil
	}
	if cred.ExpiresAt, err = parseTimePtr(expiresAt); err != nil {
		return nil, fmt.Errorf("decode expires_at for %s: %w", cred.Key(), err)
	}
	if cred.LastRefreshedAt, err = parseTimePtr(refreshed); err != nil {
		return nil, fmt.Errorf("decode last_refreshed_at for %s: %w", cred.Key(), err)
	}
	if cred.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("decode created_at for %s: %w", cred.Key(), err)
	}
	if cred.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("decode updated_at for %s: %w", cred.Key(), err)
	}
	return &cred, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
