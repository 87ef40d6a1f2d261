package balancesheet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates a missing balance-sheet resource.
var ErrNotFound = errors.New("balancesheet: not found")

// RepositoryPort defines data access for balance-sheet state.
type RepositoryPort interface {
	Append(ctx context.Context, e Entry) (Entry, error)
	ListEntries(ctx context.Context, branchID uuid.UUID, kind Kind, limit int) ([]Entry, error)
	KindTotal(ctx context.Context, branchID uuid.UUID, kind Kind, asOf time.Time) (decimal.Decimal, error)
	ListBranchIDs(ctx context.Context) ([]uuid.UUID, error)
	InsertAnnualBalance(ctx context.Context, ab AnnualBalance) (AnnualBalance, bool, error)
	ListAnnualBalances(ctx context.Context, year string) ([]AnnualBalance, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AppendTx inserts an entry and bumps the branch+kind+line-type running
// total inside the caller's transaction. The upsert takes a row lock on the
// totals row, so concurrent appends for the same key serialize instead of
// both reading a stale total.
func AppendTx(ctx context.Context, tx pgx.Tx, e Entry) (Entry, error) {
	if e.BranchID == uuid.Nil {
		return Entry{}, errors.New("balancesheet: branch required")
	}
	if e.Kind != KindAsset && e.Kind != KindCapital && e.Kind != KindLiability {
		return Entry{}, fmt.Errorf("balancesheet: unknown kind %q", e.Kind)
	}
	if e.LineType == "" {
		return Entry{}, errors.New("balancesheet: line type required")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = "ACTIVE"
	}

	err := tx.QueryRow(ctx,
		`INSERT INTO balance_totals (branch_id, kind, line_type, total, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (branch_id, kind, line_type)
DO UPDATE SET total = balance_totals.total + EXCLUDED.total, updated_at = NOW()
RETURNING total`,
		e.BranchID, e.Kind, e.LineType, e.Value).Scan(&e.UpdatedBalance)
	if err != nil {
		return Entry{}, fmt.Errorf("balancesheet: bump total: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO balance_entries (id, branch_id, kind, name, line_type, value, updated_balance, status, description)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at`,
		e.ID, e.BranchID, e.Kind, e.Name, e.LineType, e.Value, e.UpdatedBalance, e.Status, e.Description).Scan(&e.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("balancesheet: insert entry: %w", err)
	}
	return e, nil
}

// Append writes a standalone entry in its own transaction.
func (r *Repository) Append(ctx context.Context, e Entry) (Entry, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return Entry{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted, err := AppendTx(ctx, tx, e)
	if err != nil {
		return Entry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Entry{}, err
	}
	return inserted, nil
}

// ListEntries returns entries for a branch, newest first. Kind is optional.
func (r *Repository) ListEntries(ctx context.Context, branchID uuid.UUID, kind Kind, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, branch_id, kind, name, line_type, value, updated_balance, status, description, created_at
FROM balance_entries WHERE branch_id = $1`
	args := []any{branchID}
	if kind != "" {
		query += ` AND kind = $2`
		args = append(args, kind)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BranchID, &e.Kind, &e.Name, &e.LineType, &e.Value, &e.UpdatedBalance, &e.Status, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// KindTotal sums the running totals of every line type of a kind for the
// branch as of the given instant. Reading the same instant twice always
// yields the same value given no concurrent writes.
func (r *Repository) KindTotal(ctx context.Context, branchID uuid.UUID, kind Kind, asOf time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(latest.updated_balance), 0)
FROM (
    SELECT DISTINCT ON (line_type) updated_balance
    FROM balance_entries
    WHERE branch_id = $1 AND kind = $2 AND created_at <= $3
    ORDER BY line_type, created_at DESC, id DESC
) latest`,
		branchID, kind, asOf).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// ListBranchIDs returns every branch known to the system.
func (r *Repository) ListBranchIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM branches ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertAnnualBalance writes the aggregation row for branch+year. When a row
// already exists it is left untouched and returned with created=false, which
// makes re-runs idempotent.
func (r *Repository) InsertAnnualBalance(ctx context.Context, ab AnnualBalance) (AnnualBalance, bool, error) {
	if ab.ID == uuid.Nil {
		ab.ID = uuid.New()
	}
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO annual_balances (id, branch_id, accounting_year,
    assets_opening_balance, assets_closing_balance,
    capital_opening_balance, capital_closing_balance,
    liability_opening_balance, liability_closing_balance)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT ON CONSTRAINT uq_annual_balances DO NOTHING`,
		ab.ID, ab.BranchID, ab.AccountingYear,
		ab.AssetsOpeningBalance, ab.AssetsClosingBalance,
		ab.CapitalOpeningBalance, ab.CapitalClosingBalance,
		ab.LiabilityOpeningBalance, ab.LiabilityClosingBalance)
	if err != nil {
		return AnnualBalance{}, false, err
	}
	if tag.RowsAffected() == 0 {
		existing, err := r.getAnnualBalance(ctx, ab.BranchID, ab.AccountingYear)
		if err != nil {
			return AnnualBalance{}, false, err
		}
		return existing, false, nil
	}
	inserted, err := r.getAnnualBalance(ctx, ab.BranchID, ab.AccountingYear)
	if err != nil {
		return AnnualBalance{}, false, err
	}
	return inserted, true, nil
}

func (r *Repository) getAnnualBalance(ctx context.Context, branchID uuid.UUID, year string) (AnnualBalance, error) {
	var ab AnnualBalance
	err := r.pool.QueryRow(ctx,
		`SELECT id, branch_id, accounting_year,
    assets_opening_balance, assets_closing_balance,
    capital_opening_balance, capital_closing_balance,
    liability_opening_balance, liability_closing_balance, created_at
FROM annual_balances WHERE branch_id = $1 AND accounting_year = $2`,
		branchID, year).Scan(
		&ab.ID, &ab.BranchID, &ab.AccountingYear,
		&ab.AssetsOpeningBalance, &ab.AssetsClosingBalance,
		&ab.CapitalOpeningBalance, &ab.CapitalClosingBalance,
		&ab.LiabilityOpeningBalance, &ab.LiabilityClosingBalance, &ab.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return AnnualBalance{}, ErrNotFound
	}
	if err != nil {
		return AnnualBalance{}, err
	}
	return ab, nil
}

// ListAnnualBalances returns aggregation rows, optionally filtered by year.
func (r *Repository) ListAnnualBalances(ctx context.Context, year string) ([]AnnualBalance, error) {
	query := `SELECT id, branch_id, accounting_year,
    assets_opening_balance, assets_closing_balance,
    capital_opening_balance, capital_closing_balance,
    liability_opening_balance, liability_closing_balance, created_at
FROM annual_balances`
	args := []any{}
	if year != "" {
		query += ` WHERE accounting_year = $1`
		args = append(args, year)
	}
	query += ` ORDER BY accounting_year DESC, branch_id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnnualBalance
	for rows.Next() {
		var ab AnnualBalance
		if err := rows.Scan(&ab.ID, &ab.BranchID, &ab.AccountingYear,
			&ab.AssetsOpeningBalance, &ab.AssetsClosingBalance,
			&ab.CapitalOpeningBalance, &ab.CapitalClosingBalance,
			&ab.LiabilityOpeningBalance, &ab.LiabilityClosingBalance, &ab.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ab)
	}
	return out, rows.Err()
}
