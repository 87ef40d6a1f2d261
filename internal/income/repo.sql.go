package income

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pocket-bank/pocket-bank/internal/ledger"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL backed income repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepository{TxRepository: ledger.NewTxRepository(tx), tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) ListIncomes(ctx context.Context, limit int) ([]Income, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, type, amount, description, transaction_id, received_at
FROM incomes ORDER BY received_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Income
	for rows.Next() {
		var inc Income
		if err := rows.Scan(&inc.ID, &inc.Type, &inc.Amount, &inc.Description, &inc.TransactionID, &inc.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

type txRepository struct {
	ledger.TxRepository
	tx pgx.Tx
}

func (r *txRepository) InsertIncome(ctx context.Context, inc Income) (Income, error) {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO incomes (id, type, amount, description, transaction_id, received_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		inc.ID, inc.Type, inc.Amount, inc.Description, inc.TransactionID, inc.ReceivedAt)
	if err != nil {
		return Income{}, err
	}
	return inc, nil
}
