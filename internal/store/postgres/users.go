package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/edufinance/backend/internal/store"
)

type userRepo struct {
	db *sql.DB
}

func (s *Store) Users() store.UserStore {
	return &userRepo{db: s.db}
}

func (r *userRepo) Create(ctx context.Context, user *store.User) error {
	query := `
		INSERT INTO users (email, name, password_hash, email_verified, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.Name, user.PasswordHash, user.EmailVerified, user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrEmailExists
		}
		return err
	}

	return nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `
		SELECT id, email, name, password_hash, email_verified, created_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, email, name, password_hash, email_verified, created_at
		FROM users
		WHERE id = $1
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *userRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2
		WHERE id = $1
	`

	return r.execExpectingRow(ctx, query, id, passwordHash)
}

func (r *userRepo) SetEmailVerified(ctx context.Context, id int64, verified bool) error {
	query := `
		UPDATE users
		SET email_verified = $2
		WHERE id = $1
	`

	return r.execExpectingRow(ctx, query, id, verified)
}

func (r *userRepo) scanOne(row *sql.Row) (*store.User, error) {
	user := &store.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.EmailVerified, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

func (r *userRepo) execExpectingRow(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return store.ErrUserNotFound
	}

	return nil
}
