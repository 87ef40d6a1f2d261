package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pocket-bank/pocket-bank/internal/audit"
	"github.com/pocket-bank/pocket-bank/internal/balancesheet"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL backed ledger repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	if err := fn(ctx, NewTxRepository(tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	row := r.pool.QueryRow(ctx, accountQuery+` WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *repository) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	row := r.pool.QueryRow(ctx, transactionQuery+` WHERE id = $1`, id)
	return scanTransaction(row)
}

func (r *repository) ListTransactions(ctx context.Context, branchID uuid.UUID, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, transactionQuery+` WHERE branch_id = $1 ORDER BY created_at DESC LIMIT $2`, branchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// NewTxRepository wraps an open pgx transaction. Exported so sibling
// workflow packages can run the ledger gate inside their own transactions.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetEntity(ctx context.Context, id uuid.UUID) (Entity, error) {
	var e Entity
	err := r.tx.QueryRow(ctx, `SELECT id, name, kind, branch_id FROM entities WHERE id = $1`, id).
		Scan(&e.ID, &e.Name, &e.Kind, &e.BranchID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entity{}, ErrNotFound
	}
	if err != nil {
		return Entity{}, err
	}
	return e, nil
}

func (r *txRepository) InsertAccount(ctx context.Context, a Account) (Account, error) {
	err := r.tx.QueryRow(ctx,
		`INSERT INTO accounts (id, number, name, owner_id, type, branch_id, balance, status, description)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at, updated_at`,
		a.ID, a.Number, a.Name, a.OwnerID, a.Type, a.BranchID, a.Balance, a.Status, a.Description).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrDuplicate
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) LockAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	row := r.tx.QueryRow(ctx, accountQuery+` WHERE id = $1 FOR UPDATE`, id)
	return scanAccount(row)
}

func (r *txRepository) DebitAccount(ctx context.Context, id uuid.UUID, amount decimal.Decimal, floor *decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	var err error
	if floor != nil {
		err = r.tx.QueryRow(ctx,
			`UPDATE accounts SET balance = balance - $2, updated_at = NOW()
WHERE id = $1 AND balance - $2 >= $3
RETURNING balance`, id, amount, *floor).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			// The account row is already locked by this transaction, so no
			// rows here means the floor condition failed, not a missing row.
			return decimal.Zero, Violation(RuleInsufficientFunds, "insufficient funds")
		}
	} else {
		err = r.tx.QueryRow(ctx,
			`UPDATE accounts SET balance = balance - $2, updated_at = NOW()
WHERE id = $1
RETURNING balance`, id, amount).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
	}
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (r *txRepository) CreditAccount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.tx.QueryRow(ctx,
		`UPDATE accounts SET balance = balance + $2, updated_at = NOW()
WHERE id = $1
RETURNING balance`, id, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	err := r.tx.QueryRow(ctx,
		`INSERT INTO transactions (id, sender_id, recipient_id, type, direction, amount,
    sender_balance, recipient_balance, status, initiated_by, branch_id, external_ref, description)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING created_at`,
		t.ID, t.SenderID, t.RecipientID, t.Type, t.Direction, t.Amount,
		t.SenderBalance, t.RecipientBalance, t.Status, t.InitiatedBy, t.BranchID,
		nullString(t.ExternalRef), t.Description).Scan(&t.CreatedAt)
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (r *txRepository) LockTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	row := r.tx.QueryRow(ctx, transactionQuery+` WHERE id = $1 FOR UPDATE`, id)
	return scanTransaction(row)
}

func (r *txRepository) SetTransactionStatus(ctx context.Context, id uuid.UUID, status TransactionStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE transactions SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) AppendBalanceEntry(ctx context.Context, e balancesheet.Entry) (balancesheet.Entry, error) {
	return balancesheet.AppendTx(ctx, r.tx, e)
}

func (r *txRepository) RecordAudit(ctx context.Context, e audit.Entry) error {
	return audit.Record(ctx, r.tx, e)
}

const accountQuery = `SELECT id, number, name, owner_id, type, branch_id, balance, status, description, created_at, updated_at, closed_at
FROM accounts`

const transactionQuery = `SELECT id, sender_id, recipient_id, type, direction, amount,
    sender_balance, recipient_balance, status, initiated_by, branch_id, external_ref, description, created_at
FROM transactions`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Number, &a.Name, &a.OwnerID, &a.Type, &a.BranchID,
		&a.Balance, &a.Status, &a.Description, &a.CreatedAt, &a.UpdatedAt, &a.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var sender, recipient uuid.NullUUID
	var senderBalance, recipientBalance decimal.NullDecimal
	var extRef *string
	err := row.Scan(&t.ID, &sender, &recipient, &t.Type, &t.Direction, &t.Amount,
		&senderBalance, &recipientBalance, &t.Status, &t.InitiatedBy, &t.BranchID,
		&extRef, &t.Description, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	if err != nil {
		return Transaction{}, err
	}
	if sender.Valid {
		id := sender.UUID
		t.SenderID = &id
	}
	if recipient.Valid {
		id := recipient.UUID
		t.RecipientID = &id
	}
	if senderBalance.Valid {
		b := senderBalance.Decimal
		t.SenderBalance = &b
	}
	if recipientBalance.Valid {
		b := recipientBalance.Decimal
		t.RecipientBalance = &b
	}
	if extRef != nil {
		t.ExternalRef = *extRef
	}
	return t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
