package investments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pocket-bank/pocket-bank/internal/ledger"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL backed investment repository.
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

const investmentQuery = `SELECT id, from_account, to_account, type, principal, interest_rate,
    status, transaction_id, created_at, updated_at, closed_at
FROM investments`

func scanInvestment(row pgx.Row) (Investment, error) {
	var inv Investment
	var txnID uuid.NullUUID
	err := row.Scan(&inv.ID, &inv.FromAccount, &inv.ToAccount, &inv.Type, &inv.Principal,
		&inv.InterestRate, &inv.Status, &txnID, &inv.CreatedAt, &inv.UpdatedAt, &inv.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Investment{}, ErrNotFound
	}
	if err != nil {
		return Investment{}, err
	}
	if txnID.Valid {
		id := txnID.UUID
		inv.TransactionID = &id
	}
	return inv, nil
}

func (r *repository) GetInvestment(ctx context.Context, id uuid.UUID) (Investment, error) {
	return scanInvestment(r.pool.QueryRow(ctx, investmentQuery+` WHERE id = $1`, id))
}

func (r *repository) ListInvestments(ctx context.Context, status InvestmentStatus, limit int) ([]Investment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := investmentQuery
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *repository) ListCreditings(ctx context.Context, investmentID uuid.UUID) ([]Crediting, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, investment_id, transaction_id, amount, interest_earned, status, created_at
FROM investment_creditings WHERE investment_id = $1 ORDER BY created_at`, investmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Crediting
	for rows.Next() {
		var c Crediting
		if err := rows.Scan(&c.ID, &c.InvestmentID, &c.TransactionID, &c.Amount,
			&c.InterestEarned, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type txRepository struct {
	ledger.TxRepository
	tx pgx.Tx
}

func (r *txRepository) InsertInvestment(ctx context.Context, inv Investment) (Investment, error) {
	err := r.tx.QueryRow(ctx,
		`INSERT INTO investments (id, from_account, to_account, type, principal, interest_rate, status, transaction_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at, updated_at`,
		inv.ID, inv.FromAccount, inv.ToAccount, inv.Type, inv.Principal, inv.InterestRate,
		inv.Status, inv.TransactionID).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Investment{}, err
	}
	return inv, nil
}

func (r *txRepository) LockInvestment(ctx context.Context, id uuid.UUID) (Investment, error) {
	return scanInvestment(r.tx.QueryRow(ctx, investmentQuery+` WHERE id = $1 FOR UPDATE`, id))
}

func (r *txRepository) UpdateInvestment(ctx context.Context, inv Investment) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE investments SET status = $2, closed_at = $3, updated_at = NOW() WHERE id = $1`,
		inv.ID, inv.Status, inv.ClosedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertCrediting(ctx context.Context, c Crediting) (Crediting, error) {
	err := r.tx.QueryRow(ctx,
		`INSERT INTO investment_creditings (id, investment_id, transaction_id, amount, interest_earned, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at`,
		c.ID, c.InvestmentID, c.TransactionID, c.Amount, c.InterestEarned, c.Status).Scan(&c.CreatedAt)
	if err != nil {
		return Crediting{}, err
	}
	return c, nil
}
