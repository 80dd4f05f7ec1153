package postgres

import (
	"context"
	"database/sql"

	"github.com/edufinance/backend/internal/store"
)

type transactionRepo struct {
	db *sql.DB
}

func (s *Store) Transactions() store.TransactionStore {
	return &transactionRepo{db: s.db}
}

func (r *transactionRepo) Create(ctx context.Context, tx *store.Transaction) error {
	query := `
		INSERT INTO transactions (user_id, name, date, amount, category, note)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING id
	`

	return r.db.QueryRowContext(ctx, query,
		tx.UserID, tx.Name, tx.Date, tx.Amount, tx.Category, tx.Note,
	).Scan(&tx.ID)
}

func (r *transactionRepo) ListForUser(ctx context.Context, userID int64) ([]*store.Transaction, error) {
	query := `
		SELECT id, user_id, name, date, amount, category, COALESCE(note, '')
		FROM transactions
		WHERE user_id = $1
		ORDER BY date DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*store.Transaction, 0)
	for rows.Next() {
		tx := &store.Transaction{}
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Name, &tx.Date, &tx.Amount, &tx.Category, &tx.Note); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}

	return out, rows.Err()
}

func (r *transactionRepo) Delete(ctx context.Context, id, userID int64) error {
	query := `
		DELETE FROM transactions
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return store.ErrTransactionNotFound
	}

	return nil
}
