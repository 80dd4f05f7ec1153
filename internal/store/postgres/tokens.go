package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/edufinance/backend/internal/store"
)

type refreshTokenRepo struct {
	db *sql.DB
}

func (s *Store) RefreshTokens() store.RefreshTokenStore {
	return &refreshTokenRepo{db: s.db}
}

func (r *refreshTokenRepo) Create(ctx context.Context, token *store.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query,
		token.TokenHash, token.UserID, token.ExpiresAt, token.CreatedAt,
	)
	return err
}

func (r *refreshTokenRepo) GetByHash(ctx context.Context, tokenHash string) (*store.RefreshToken, error) {
	query := `
		SELECT token_hash, user_id, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	token := &store.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.TokenHash, &token.UserID, &token.ExpiresAt, &token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTokenNotFound
		}
		return nil, err
	}

	return token, nil
}

func (r *refreshTokenRepo) Delete(ctx context.Context, tokenHash string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE token_hash = $1
	`

	return deleteConditional(ctx, r.db, query, tokenHash)
}

func (r *refreshTokenRepo) DeleteForUser(ctx context.Context, userID int64) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
	`

	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

type actionTokenRepo struct {
	db    *sql.DB
	table string
}

func (s *Store) ResetTokens() store.ActionTokenStore {
	return &actionTokenRepo{db: s.db, table: "password_reset_tokens"}
}

func (s *Store) VerificationTokens() store.ActionTokenStore {
	return &actionTokenRepo{db: s.db, table: "email_verification_tokens"}
}

func (r *actionTokenRepo) Create(ctx context.Context, token *store.ActionToken) error {
	query := `
		INSERT INTO ` + r.table + ` (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
	`

	_, err := r.db.ExecContext(ctx, query, token.TokenHash, token.UserID, token.ExpiresAt)
	return err
}

func (r *actionTokenRepo) GetByHash(ctx context.Context, tokenHash string) (*store.ActionToken, error) {
	query := `
		SELECT token_hash, user_id, expires_at
		FROM ` + r.table + `
		WHERE token_hash = $1
	`

	token := &store.ActionToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.TokenHash, &token.UserID, &token.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTokenNotFound
		}
		return nil, err
	}

	return token, nil
}

func (r *actionTokenRepo) Delete(ctx context.Context, tokenHash string) error {
	query := `
		DELETE FROM ` + r.table + `
		WHERE token_hash = $1
	`

	return deleteConditional(ctx, r.db, query, tokenHash)
}

// deleteConditional runs a single-row DELETE and reports ErrTokenNotFound
// when no row matched, which is what makes rotation single-winner.
func deleteConditional(ctx context.Context, db *sql.DB, query string, args ...any) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return store.ErrTokenNotFound
	}

	return nil
}
