// Package income records revenue arriving from outside the ledger: fees
// collected in cash, grants, service charges settled externally. Each income
// credits the bank operating account and raises the branch's cash and
// equity-capital lines.
package income

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocket-bank/pocket-bank/internal/audit"
	"github.com/pocket-bank/pocket-bank/internal/balancesheet"
	"github.com/pocket-bank/pocket-bank/internal/ledger"
)

// ErrNotFound indicates the income record does not exist.
var ErrNotFound = errors.New("income: not found")

// Income is one recorded revenue event.
type Income struct {
	ID            uuid.UUID
	Type          string
	Amount        decimal.Decimal
	Description   string
	TransactionID uuid.UUID
	ReceivedAt    time.Time
}

// RecordInput describes an income to record.
type RecordInput struct {
	Type        string
	Amount      decimal.Decimal
	Description string
	ExternalRef string
	InitiatedBy uuid.UUID
}

// Repository encapsulates income persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListIncomes(ctx context.Context, limit int) ([]Income, error)
}

// TxRepository extends the ledger transaction scope with income rows.
type TxRepository interface {
	ledger.TxRepository
	InsertIncome(ctx context.Context, inc Income) (Income, error)
}

// Service records incomes against the bank operating account.
type Service struct {
	repo        Repository
	bankAccount *uuid.UUID
	floor       decimal.Decimal
	now         func() time.Time
}

// NewService builds an income service.
func NewService(repo Repository, bankAccount *uuid.UUID, floor decimal.Decimal) *Service {
	return &Service{
		repo:        repo,
		bankAccount: bankAccount,
		floor:       floor,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Record credits the bank operating account with revenue from outside the
// ledger and books the matching cash and equity-capital lines.
func (s *Service) Record(ctx context.Context, in RecordInput) (Income, error) {
	if s.bankAccount == nil || *s.bankAccount == uuid.Nil {
		return Income{}, &ledger.ConfigurationError{Message: "no bank operating account configured"}
	}
	bank := *s.bankAccount

	var inc Income
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bankAccount, err := tx.LockAccount(ctx, bank)
		if err != nil {
			return err
		}

		txn, err := ledger.Apply(ctx, tx, ledger.SubmitInput{
			RecipientID: &bank,
			Type:        ledger.TypeIncome,
			Direction:   ledger.DirectionExternal,
			Amount:      in.Amount,
			InitiatedBy: in.InitiatedBy,
			BranchID:    bankAccount.BranchID,
			ExternalRef: in.ExternalRef,
			Description: in.Description,
		}, s.floor)
		if err != nil {
			return err
		}

		now := s.now()
		inc, err = tx.InsertIncome(ctx, Income{
			ID:            uuid.New(),
			Type:          in.Type,
			Amount:        in.Amount,
			Description:   in.Description,
			TransactionID: txn.ID,
			ReceivedAt:    now,
		})
		if err != nil {
			return err
		}

		if _, err := tx.AppendBalanceEntry(ctx, balancesheet.Entry{
			BranchID: bankAccount.BranchID,
			Kind:     balancesheet.KindAsset,
			Name:     in.Type,
			LineType: balancesheet.LineCash,
			Value:    in.Amount,
		}); err != nil {
			return err
		}
		if _, err := tx.AppendBalanceEntry(ctx, balancesheet.Entry{
			BranchID: bankAccount.BranchID,
			Kind:     balancesheet.KindCapital,
			Name:     in.Type,
			LineType: balancesheet.LineEquityCapital,
			Value:    in.Amount,
		}); err != nil {
			return err
		}

		return tx.RecordAudit(ctx, audit.Entry{
			ActorID: &in.InitiatedBy,
			Action:  "income.record",
			Tables:  "incomes,transactions,accounts,balance_entries",
			NewValue: map[string]any{
				"income_id":      inc.ID.String(),
				"transaction_id": txn.ID.String(),
				"type":           in.Type,
				"amount":         in.Amount.String(),
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return Income{}, err
	}
	return inc, nil
}

// ListIncomes returns recorded incomes, newest first.
func (s *Service) ListIncomes(ctx context.Context, limit int) ([]Income, error) {
	return s.repo.ListIncomes(ctx, limit)
}
