// Package store defines the durable records owned by the credential store and
// the repository interfaces the rest of the service is written against. Two
// implementations exist: a file-backed JSON document (store/jsonfile) and a
// Postgres store (store/postgres).
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailExists         = errors.New("email already exists")
	ErrTokenNotFound       = errors.New("token not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// User is an account record. Email is stored lowercase; uniqueness is
// case-insensitive. IDs are small monotonic integers assigned by the store.
type User struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"passwordHash"`
	EmailVerified bool      `json:"isEmailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// RefreshToken is a stored session capability. Only the SHA-256 hash of the
// opaque token value is persisted; at most one record exists per hash.
type RefreshToken struct {
	TokenHash string    `json:"token"`
	UserID    int64     `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// ActionToken is a single-use, short-lived token backing the password-reset
// and email-verification flows. Stored hashed, like refresh tokens.
type ActionToken struct {
	TokenHash string    `json:"token"`
	UserID    int64     `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Transaction is a user ledger entry. Negative amounts are expenses.
type Transaction struct {
	ID       int64   `json:"id"`
	UserID   int64   `json:"user_id"`
	Name     string  `json:"name"`
	Date     string  `json:"date"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Note     string  `json:"note,omitempty"`
}

type UserStore interface {
	// Create assigns the next ID and persists the user. Returns
	// ErrEmailExists when the (lowercased) email is already taken.
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetEmailVerified(ctx context.Context, id int64, verified bool) error
}

type RefreshTokenStore interface {
	Create(ctx context.Context, token *RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	// Delete removes the record and returns ErrTokenNotFound if it was
	// already gone. Rotation relies on this conditional delete: of two
	// concurrent refreshes presenting the same token, exactly one wins.
	Delete(ctx context.Context, tokenHash string) error
	DeleteForUser(ctx context.Context, userID int64) error
}

// ActionTokenStore backs both password-reset and email-verification tokens;
// each implementation keeps the two families in separate collections.
type ActionTokenStore interface {
	Create(ctx context.Context, token *ActionToken) error
	GetByHash(ctx context.Context, tokenHash string) (*ActionToken, error)
	// Delete is conditional, as for refresh tokens. Action tokens are
	// single-use.
	Delete(ctx context.Context, tokenHash string) error
}

type TransactionStore interface {
	// Create assigns the next ID and persists the transaction.
	Create(ctx context.Context, tx *Transaction) error
	// ListForUser returns the user's transactions, most recent date first,
	// then highest ID first.
	ListForUser(ctx context.Context, userID int64) ([]*Transaction, error)
	// Delete removes the transaction if it belongs to userID; returns
	// ErrTransactionNotFound otherwise.
	Delete(ctx context.Context, id, userID int64) error
}

// Store aggregates the repositories of a single backing document or database.
type Store interface {
	Users() UserStore
	RefreshTokens() RefreshTokenStore
	ResetTokens() ActionTokenStore
	VerificationTokens() ActionTokenStore
	Transactions() TransactionStore
	Close() error
}
