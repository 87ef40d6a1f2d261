package loans

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pocket-bank/pocket-bank/internal/ledger"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL backed loan repository.
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

const loanQuery = `SELECT id, from_account, to_account, type, interest_rate, term_months,
    payment_frequency, late_fee, principal, outstanding, fully_paid, status,
    transaction_id, disbursed_at, created_at, updated_at, closed_at
FROM loans`

func scanLoan(row pgx.Row) (Loan, error) {
	var l Loan
	var txnID uuid.NullUUID
	err := row.Scan(&l.ID, &l.FromAccount, &l.ToAccount, &l.Type, &l.InterestRate, &l.TermMonths,
		&l.Frequency, &l.LateFee, &l.Principal, &l.Outstanding, &l.FullyPaid, &l.Status,
		&txnID, &l.DisbursedAt, &l.CreatedAt, &l.UpdatedAt, &l.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Loan{}, ErrNotFound
	}
	if err != nil {
		return Loan{}, err
	}
	if txnID.Valid {
		id := txnID.UUID
		l.TransactionID = &id
	}
	return l, nil
}

func (r *repository) GetLoan(ctx context.Context, id uuid.UUID) (Loan, error) {
	return scanLoan(r.pool.QueryRow(ctx, loanQuery+` WHERE id = $1`, id))
}

func (r *repository) ListLoans(ctx context.Context, branchID uuid.UUID, limit int) ([]Loan, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		loanQuery+` WHERE to_account IN (SELECT id FROM accounts WHERE branch_id = $1)
ORDER BY created_at DESC LIMIT $2`, branchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

func (r *repository) ListPayments(ctx context.Context, loanID uuid.UUID) ([]LoanPayment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, loan_id, paid_by, transaction_id, amount, interest_paid, principal_paid, status, created_at
FROM loan_payments WHERE loan_id = $1 ORDER BY created_at`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []LoanPayment
	for rows.Next() {
		var p LoanPayment
		if err := rows.Scan(&p.ID, &p.LoanID, &p.PaidBy, &p.TransactionID, &p.Amount,
			&p.InterestPaid, &p.PrincipalPaid, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

type txRepository struct {
	ledger.TxRepository
	tx pgx.Tx
}

func (r *txRepository) InsertLoan(ctx context.Context, l Loan) (Loan, error) {
	err := r.tx.QueryRow(ctx,
		`INSERT INTO loans (id, from_account, to_account, type, interest_rate, term_months,
    payment_frequency, late_fee, principal, outstanding, fully_paid, status,
    transaction_id, disbursed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING created_at, updated_at`,
		l.ID, l.FromAccount, l.ToAccount, l.Type, l.InterestRate, l.TermMonths,
		l.Frequency, l.LateFee, l.Principal, l.Outstanding, l.FullyPaid, l.Status,
		l.TransactionID, l.DisbursedAt).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return Loan{}, err
	}
	return l, nil
}

func (r *txRepository) LockLoan(ctx context.Context, id uuid.UUID) (Loan, error) {
	return scanLoan(r.tx.QueryRow(ctx, loanQuery+` WHERE id = $1 FOR UPDATE`, id))
}

func (r *txRepository) UpdateLoan(ctx context.Context, l Loan) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE loans SET outstanding = $2, fully_paid = $3, status = $4, closed_at = $5, updated_at = NOW()
WHERE id = $1`,
		l.ID, l.Outstanding, l.FullyPaid, l.Status, l.ClosedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertPayment(ctx context.Context, p LoanPayment) (LoanPayment, error) {
	err := r.tx.QueryRow(ctx,
		`INSERT INTO loan_payments (id, loan_id, paid_by, transaction_id, amount, interest_paid, principal_paid, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at`,
		p.ID, p.LoanID, p.PaidBy, p.TransactionID, p.Amount, p.InterestPaid, p.PrincipalPaid, p.Status).
		Scan(&p.CreatedAt)
	if err != nil {
		return LoanPayment{}, err
	}
	return p, nil
}
