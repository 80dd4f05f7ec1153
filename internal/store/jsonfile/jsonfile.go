// Package jsonfile implements store.Store over a single JSON document on
// disk. Every operation is a full read-modify-write of the in-memory document
// under one lock, followed by an atomic rewrite of the backing file. This
// mirrors the deployment the service is sized for: one process, low write
// concurrency.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/edufinance/backend/internal/store"
)

type document struct {
	Users                   []*store.User         `json:"users"`
	RefreshTokens           []*store.RefreshToken `json:"refreshTokens"`
	PasswordResetTokens     []*store.ActionToken  `json:"passwordResetTokens"`
	EmailVerificationTokens []*store.ActionToken  `json:"emailVerificationTokens"`
	Transactions            []*store.Transaction  `json:"transactions"`
}

// Store is a file-backed JSON document store. An empty path keeps the
// document in memory only, which is what the tests use.
type Store struct {
	mu   sync.Mutex
	path string
	doc  document
}

// Open loads the document at path, creating an empty one if the file does
// not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.doc); err != nil {
			return nil, fmt.Errorf("failed to parse store file: %w", err)
		}
	}

	return s, nil
}

func (s *Store) Users() store.UserStore                 { return (*users)(s) }
func (s *Store) RefreshTokens() store.RefreshTokenStore { return (*refreshTokens)(s) }
func (s *Store) ResetTokens() store.ActionTokenStore    { return &actionTokens{s: s, reset: true} }
func (s *Store) VerificationTokens() store.ActionTokenStore {
	return &actionTokens{s: s, reset: false}
}
func (s *Store) Transactions() store.TransactionStore { return (*transactions)(s) }

func (s *Store) Close() error { return nil }

// flush rewrites the whole document. Callers hold s.mu. The write goes
// through a temp file and rename so a crash never leaves a torn document.
func (s *Store) flush() error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// nextUserID returns max(id)+1, scanning the slice like the original
// flat-file schema did.
func nextUserID(users []*store.User) int64 {
	var max int64
	for _, u := range users {
		if u.ID > max {
			max = u.ID
		}
	}
	return max + 1
}

func nextTransactionID(txs []*store.Transaction) int64 {
	var max int64
	for _, t := range txs {
		if t.ID > max {
			max = t.ID
		}
	}
	return max + 1
}

type users Store

func (r *users) Create(ctx context.Context, user *store.User) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.doc.Users {
		if strings.EqualFold(u.Email, user.Email) {
			return store.ErrEmailExists
		}
	}

	user.ID = nextUserID(s.doc.Users)
	s.doc.Users = append(s.doc.Users, user)
	return s.flush()
}

func (r *users) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.doc.Users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (r *users) GetByID(ctx context.Context, id int64) (*store.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.doc.Users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (r *users) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.doc.Users {
		if u.ID == id {
			u.PasswordHash = passwordHash
			return s.flush()
		}
	}
	return store.ErrUserNotFound
}

func (r *users) SetEmailVerified(ctx context.Context, id int64, verified bool) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.doc.Users {
		if u.ID == id {
			u.EmailVerified = verified
			return s.flush()
		}
	}
	return store.ErrUserNotFound
}

type refreshTokens Store

func (r *refreshTokens) Create(ctx context.Context, token *store.RefreshToken) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.RefreshTokens = append(s.doc.RefreshTokens, token)
	return s.flush()
}

func (r *refreshTokens) GetByHash(ctx context.Context, tokenHash string) (*store.RefreshToken, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.doc.RefreshTokens {
		if t.TokenHash == tokenHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrTokenNotFound
}

func (r *refreshTokens) Delete(ctx context.Context, tokenHash string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.doc.RefreshTokens {
		if t.TokenHash == tokenHash {
			s.doc.RefreshTokens = append(s.doc.RefreshTokens[:i], s.doc.RefreshTokens[i+1:]...)
			return s.flush()
		}
	}
	return store.ErrTokenNotFound
}

func (r *refreshTokens) DeleteForUser(ctx context.Context, userID int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.doc.RefreshTokens[:0]
	for _, t := range s.doc.RefreshTokens {
		if t.UserID != userID {
			kept = append(kept, t)
		}
	}
	s.doc.RefreshTokens = kept
	return s.flush()
}

type actionTokens struct {
	s     *Store
	reset bool
}

func (r *actionTokens) slice() *[]*store.ActionToken {
	if r.reset {
		return &r.s.doc.PasswordResetTokens
	}
	return &r.s.doc.EmailVerificationTokens
}

func (r *actionTokens) Create(ctx context.Context, token *store.ActionToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	col := r.slice()
	*col = append(*col, token)
	return r.s.flush()
}

func (r *actionTokens) GetByHash(ctx context.Context, tokenHash string) (*store.ActionToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, t := range *r.slice() {
		if t.TokenHash == tokenHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrTokenNotFound
}

func (r *actionTokens) Delete(ctx context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	col := r.slice()
	for i, t := range *col {
		if t.TokenHash == tokenHash {
			*col = append((*col)[:i], (*col)[i+1:]...)
			return r.s.flush()
		}
	}
	return store.ErrTokenNotFound
}

type transactions Store

func (r *transactions) Create(ctx context.Context, tx *store.Transaction) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	tx.ID = nextTransactionID(s.doc.Transactions)
	s.doc.Transactions = append(s.doc.Transactions, tx)
	return s.flush()
}

func (r *transactions) ListForUser(ctx context.Context, userID int64) ([]*store.Transaction, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*store.Transaction, 0)
	for _, t := range s.doc.Transactions {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ID > out[j].ID
	})

	return out, nil
}

func (r *transactions) Delete(ctx context.Context, id, userID int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.doc.Transactions {
		if t.ID == id && t.UserID == userID {
			s.doc.Transactions = append(s.doc.Transactions[:i], s.doc.Transactions[i+1:]...)
			return s.flush()
		}
	}
	return store.ErrTransactionNotFound
}
