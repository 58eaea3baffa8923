package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// TokenRepository persists the OAuth2 token between restarts.
type TokenRepository interface {
	Load(ctx context.Context, clientID string) (*oauth2.Token, error)
	Save(ctx context.Context, clientID string, tok *oauth2.Token) error
}

// SQLiteTokenRepository implements TokenRepository on the oauth_tokens table.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new SQLite-backed token repository.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}

// Load returns the persisted token for clientID, or ErrTokenNotFound.
func (r *SQLiteTokenRepository) Load(ctx context.Context, clientID string) (*oauth2.Token, error) {
	var tok oauth2.Token
	var expiresAt sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, token_type, expires_at
		 FROM oauth_tokens WHERE client_id = ?`, clientID,
	).Scan(&tok.AccessToken, &tok.RefreshToken, &tok.TokenType, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("loading oauth token: %w", err)
	}

	if expiresAt.Valid {
		tok.Expiry, _ = time.Parse(time.RFC3339, expiresAt.String) //nolint:errcheck // format is controlled
	}

	return &tok, nil
}

// Save upserts tok as the current token for clientID.
func (r *SQLiteTokenRepository) Save(ctx context.Context, clientID string, tok *oauth2.Token) error {
	if tok == nil || tok.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	var expiresAt sql.NullString
	if !tok.Expiry.IsZero() {
		expiresAt = sql.NullString{String: tok.Expiry.UTC().Format(time.RFC3339), Valid: true}
	}

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_tokens (client_id, access_token, refresh_token, token_type, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(client_id) DO UPDATE SET
		     access_token = excluded.access_token,
		     refresh_token = excluded.refresh_token,
		     token_type = excluded.token_type,
		     expires_at = excluded.expires_at,
		     updated_at = excluded.updated_at`,
		clientID, tok.AccessToken, tok.RefreshToken, tokenType, expiresAt,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving oauth token: %w", err)
	}
	return nil
}

// PersistOnUpdate returns a callback for Store.OnTokenUpdated that saves
// every refreshed token. Save failures are logged, not returned: the new
// token is already live in memory.
func PersistOnUpdate(repo TokenRepository, clientID string, logger Logger) func(*oauth2.Token) {
	if logger == nil {
		logger = noopLogger{}
	}
	return func(tok *oauth2.Token) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.Save(ctx, clientID, tok); err != nil {
			logger.Error("persisting refreshed token failed", "error", err)
		}
	}
}
