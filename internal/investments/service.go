package investments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocket-bank/pocket-bank/internal/audit"
	"github.com/pocket-bank/pocket-bank/internal/balancesheet"
	"github.com/pocket-bank/pocket-bank/internal/ledger"
)

// Service runs the investment workflows: placing principal with a
// counterparty and crediting the payout at maturity.
type Service struct {
	repo        Repository
	bankAccount *uuid.UUID
	floor       decimal.Decimal
	now         func() time.Time
}

// NewService builds an investment service. bankAccount is the operating
// account principal leaves from and payouts return to.
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

func (s *Service) requireBankAccount() (uuid.UUID, error) {
	if s.bankAccount == nil || *s.bankAccount == uuid.Nil {
		return uuid.Nil, &ledger.ConfigurationError{Message: "no bank operating account configured"}
	}
	return *s.bankAccount, nil
}

// Open places principal from the bank operating account with the
// counterparty account and records the investment as active.
func (s *Service) Open(ctx context.Context, in OpenInput) (Investment, error) {
	bank, err := s.requireBankAccount()
	if err != nil {
		return Investment{}, err
	}
	if in.InterestRate.IsNegative() {
		return Investment{}, ErrNegativeInterest
	}

	var inv Investment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, counterparty, err := ledger.LockAccounts(ctx, tx, bank, in.AccountID)
		if err != nil {
			return err
		}

		txn, err := ledger.Apply(ctx, tx, ledger.SubmitInput{
			SenderID:    &bank,
			RecipientID: &in.AccountID,
			Type:        ledger.TypeTransfer,
			Direction:   ledger.DirectionInternal,
			Amount:      in.Amount,
			InitiatedBy: in.InitiatedBy,
			BranchID:    counterparty.BranchID,
			Description: in.Description,
		}, s.floor)
		if err != nil {
			return err
		}

		inv, err = tx.InsertInvestment(ctx, Investment{
			ID:            uuid.New(),
			FromAccount:   bank,
			ToAccount:     in.AccountID,
			Type:          in.Type,
			Principal:     in.Amount,
			InterestRate:  in.InterestRate,
			Status:        StatusActive,
			TransactionID: &txn.ID,
		})
		if err != nil {
			return err
		}

		return tx.RecordAudit(ctx, audit.Entry{
			ActorID: &in.InitiatedBy,
			Action:  "investment.open",
			Tables:  "investments,transactions,accounts",
			NewValue: map[string]any{
				"investment_id":  inv.ID.String(),
				"transaction_id": txn.ID.String(),
				"principal":      in.Amount.String(),
				"interest_rate":  in.InterestRate.String(),
			},
			OccurredAt: s.now(),
		})
	})
	if err != nil {
		return Investment{}, err
	}
	return inv, nil
}

// Credit pays a matured investment back into the bank operating account:
// principal plus the realized interest, in one movement. The interest earned
// raises the branch's equity capital.
func (s *Service) Credit(ctx context.Context, in CreditInput) (Crediting, error) {
	bank, err := s.requireBankAccount()
	if err != nil {
		return Crediting{}, err
	}
	if in.Interest.IsNegative() {
		return Crediting{}, ErrNegativeInterest
	}

	var crediting Crediting
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.LockInvestment(ctx, in.InvestmentID)
		if err != nil {
			return err
		}
		if inv.Status != StatusActive {
			return ErrNotActive
		}

		bankAccount, _, err := ledger.LockAccounts(ctx, tx, bank, inv.ToAccount)
		if err != nil {
			return err
		}

		payout := inv.Principal.Add(in.Interest)
		txn, err := ledger.Apply(ctx, tx, ledger.SubmitInput{
			SenderID:    &inv.ToAccount,
			RecipientID: &bank,
			Type:        ledger.TypeInterestCrediting,
			Direction:   ledger.DirectionInternal,
			Amount:      payout,
			InitiatedBy: in.InitiatedBy,
			BranchID:    bankAccount.BranchID,
			Description: "maturity payout " + inv.ID.String(),
		}, s.floor)
		if err != nil {
			return err
		}

		now := s.now()
		inv.Status = StatusMatured
		inv.UpdatedAt = now
		closed := now
		inv.ClosedAt = &closed
		if err := tx.UpdateInvestment(ctx, inv); err != nil {
			return err
		}

		crediting, err = tx.InsertCrediting(ctx, Crediting{
			ID:             uuid.New(),
			InvestmentID:   inv.ID,
			TransactionID:  txn.ID,
			Amount:         payout,
			InterestEarned: in.Interest,
			Status:         "POSTED",
		})
		if err != nil {
			return err
		}

		if in.Interest.IsPositive() {
			if _, err := tx.AppendBalanceEntry(ctx, balancesheet.Entry{
				BranchID: bankAccount.BranchID,
				Kind:     balancesheet.KindCapital,
				Name:     bankAccount.Name,
				LineType: balancesheet.LineEquityCapital,
				Value:    in.Interest,
			}); err != nil {
				return err
			}
		}

		return tx.RecordAudit(ctx, audit.Entry{
			ActorID: &in.InitiatedBy,
			Action:  "investment.credit",
			Tables:  "investments,investment_creditings,transactions,accounts,balance_entries",
			OldValue: map[string]any{
				"investment_id": inv.ID.String(),
				"status":        string(StatusActive),
			},
			NewValue: map[string]any{
				"investment_id":   inv.ID.String(),
				"crediting_id":    crediting.ID.String(),
				"status":          string(StatusMatured),
				"amount":          payout.String(),
				"interest_earned": in.Interest.String(),
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return Crediting{}, err
	}
	return crediting, nil
}

// GetInvestment returns one investment.
func (s *Service) GetInvestment(ctx context.Context, id uuid.UUID) (Investment, error) {
	return s.repo.GetInvestment(ctx, id)
}

// ListInvestments returns investments, optionally filtered by status.
func (s *Service) ListInvestments(ctx context.Context, status InvestmentStatus, limit int) ([]Investment, error) {
	return s.repo.ListInvestments(ctx, status, limit)
}

// ListCreditings returns the payout history for an investment.
func (s *Service) ListCreditings(ctx context.Context, investmentID uuid.UUID) ([]Crediting, error) {
	return s.repo.ListCreditings(ctx, investmentID)
}
