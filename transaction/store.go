package transaction

import (
	"context"

	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/postgres"
)

// Store persists transactions.
type Store interface {
	// Insert reports false when a transaction with the same id already exists.
	Insert(ctx context.Context, t *Transaction) (bool, error)
	List(ctx context.Context, userID int64, limit int) ([]*Transaction, error)
}

const (
	insertTransaction = `INSERT INTO "transaction"
	(id, user_id, account, amount, balance, currency_code, mcc, category, description, time)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO NOTHING;`

	selectTransactions = `SELECT id, user_id, account, amount, balance, currency_code, mcc, category, description, time
	FROM "transaction" WHERE user_id = $1 ORDER BY time DESC LIMIT $2;`
)

type pgStore struct {
	db postgres.Querier
}

// NewStore returns a Store backed by the "transaction" table.
func NewStore(db postgres.Querier) Store {
	return &pgStore{db: db}
}

func (s *pgStore) Insert(ctx context.Context, t *Transaction) (bool, error) {
	tag, err := s.db.Exec(ctx, insertTransaction,
		t.ID, t.UserID, t.Account, t.Amount, t.Balance, t.CurrencyCode, t.MCC, t.Category, t.Description, t.Time)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *pgStore) List(ctx context.Context, userID int64, limit int) ([]*Transaction, error) {
	rows, err := s.db.Query(ctx, selectTransactions, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Account, &t.Amount, &t.Balance,
			&t.CurrencyCode, &t.MCC, &t.Category, &t.Description, &t.Time); err != nil {
			return nil, apperrors.NewQuery(selectTransactions, err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQuery(selectTransactions, err)
	}
	return out, nil
}
