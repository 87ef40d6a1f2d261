package loans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocket-bank/pocket-bank/internal/audit"
	"github.com/pocket-bank/pocket-bank/internal/balancesheet"
	"github.com/pocket-bank/pocket-bank/internal/ledger"
)

// Service runs the lending workflows. Disbursement and payment both move
// money through the ledger gate and keep the loan row, the balance-sheet
// receivable and the audit trail in the same transaction.
type Service struct {
	repo        Repository
	bankAccount *uuid.UUID
	floor       decimal.Decimal
	now         func() time.Time
}

// NewService builds a loan service. bankAccount is the designated operating
// account loans are paid out of and into; nil means the deployment has not
// configured one and every lending operation fails with a
// ConfigurationError.
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

// Disburse pays a loan principal from the bank operating account into the
// borrower's account and opens the loan with the full principal outstanding.
// The disbursed principal becomes an Accounts Receivable asset on the
// borrower's branch.
func (s *Service) Disburse(ctx context.Context, in DisburseInput) (Loan, error) {
	bank, err := s.requireBankAccount()
	if err != nil {
		return Loan{}, err
	}
	if in.Frequency.PeriodsPerYear() == 0 {
		return Loan{}, ErrUnknownFrequency
	}

	var loan Loan
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, borrower, err := ledger.LockAccounts(ctx, tx, bank, in.AccountID)
		if err != nil {
			return err
		}

		txn, err := ledger.Apply(ctx, tx, ledger.SubmitInput{
			SenderID:    &bank,
			RecipientID: &in.AccountID,
			Type:        ledger.TypeLoanDisbursement,
			Direction:   ledger.DirectionInternal,
			Amount:      in.Amount,
			InitiatedBy: in.InitiatedBy,
			BranchID:    borrower.BranchID,
			Description: in.Description,
		}, s.floor)
		if err != nil {
			return err
		}

		now := s.now()
		loan, err = tx.InsertLoan(ctx, Loan{
			ID:            uuid.New(),
			FromAccount:   bank,
			ToAccount:     in.AccountID,
			Type:          in.Type,
			InterestRate:  in.InterestRate,
			TermMonths:    in.TermMonths,
			Frequency:     in.Frequency,
			LateFee:       in.LateFee,
			Principal:     in.Amount,
			Outstanding:   in.Amount,
			Status:        StatusActive,
			TransactionID: &txn.ID,
			DisbursedAt:   now,
		})
		if err != nil {
			return err
		}

		if _, err := tx.AppendBalanceEntry(ctx, balancesheet.Entry{
			BranchID: borrower.BranchID,
			Kind:     balancesheet.KindAsset,
			Name:     borrower.Name,
			LineType: balancesheet.LineAccountsReceivable,
			Value:    in.Amount,
		}); err != nil {
			return err
		}

		return tx.RecordAudit(ctx, audit.Entry{
			ActorID: &in.InitiatedBy,
			Action:  "loan.disburse",
			Tables:  "loans,transactions,accounts,balance_entries",
			NewValue: map[string]any{
				"loan_id":        loan.ID.String(),
				"transaction_id": txn.ID.String(),
				"principal":      in.Amount.String(),
				"interest_rate":  in.InterestRate.String(),
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return Loan{}, err
	}
	return loan, nil
}

// periodInterest is the interest accrued for one payment period:
// outstanding times the annual rate, divided across the year's periods.
func periodInterest(outstanding, annualRate decimal.Decimal, periods int64) decimal.Decimal {
	return outstanding.
		Mul(annualRate).
		Div(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(periods)).
		Round(4)
}

// RecordPayment applies an installment to a loan. The payment first covers
// the period's interest; the remainder reduces the principal. When the
// outstanding balance reaches zero the loan settles and closes.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (LoanPayment, error) {
	bank, err := s.requireBankAccount()
	if err != nil {
		return LoanPayment{}, err
	}

	var payment LoanPayment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		loan, err := tx.LockLoan(ctx, in.LoanID)
		if err != nil {
			return err
		}
		if loan.Status != StatusActive || loan.FullyPaid {
			return ErrNotActive
		}

		periods := loan.Frequency.PeriodsPerYear()
		if periods == 0 {
			return ErrUnknownFrequency
		}
		interest := periodInterest(loan.Outstanding, loan.InterestRate, periods)
		principal := in.Amount.Sub(interest)
		if principal.IsNegative() {
			return ErrBelowInterest
		}
		if principal.GreaterThan(loan.Outstanding) {
			return ErrOverpayment
		}

		_, borrower, err := ledger.LockAccounts(ctx, tx, bank, loan.ToAccount)
		if err != nil {
			return err
		}

		txn, err := ledger.Apply(ctx, tx, ledger.SubmitInput{
			SenderID:    &loan.ToAccount,
			RecipientID: &bank,
			Type:        ledger.TypeLoanPayment,
			Direction:   ledger.DirectionInternal,
			Amount:      in.Amount,
			InitiatedBy: in.InitiatedBy,
			BranchID:    borrower.BranchID,
			Description: "loan payment " + loan.ID.String(),
		}, s.floor)
		if err != nil {
			return err
		}

		now := s.now()
		loan.Outstanding = loan.Outstanding.Sub(principal)
		loan.UpdatedAt = now
		if loan.Outstanding.IsZero() {
			loan.Status = StatusSettled
			loan.FullyPaid = true
			closed := now
			loan.ClosedAt = &closed
		}
		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return err
		}

		payment, err = tx.InsertPayment(ctx, LoanPayment{
			ID:            uuid.New(),
			LoanID:        loan.ID,
			PaidBy:        in.InitiatedBy,
			TransactionID: txn.ID,
			Amount:        in.Amount,
			InterestPaid:  interest,
			PrincipalPaid: principal,
			Status:        "POSTED",
		})
		if err != nil {
			return err
		}

		if principal.IsPositive() {
			if _, err := tx.AppendBalanceEntry(ctx, balancesheet.Entry{
				BranchID: borrower.BranchID,
				Kind:     balancesheet.KindAsset,
				Name:     borrower.Name,
				LineType: balancesheet.LineAccountsReceivable,
				Value:    principal.Neg(),
			}); err != nil {
				return err
			}
		}

		return tx.RecordAudit(ctx, audit.Entry{
			ActorID: &in.InitiatedBy,
			Action:  "loan.payment",
			Tables:  "loans,loan_payments,transactions,accounts,balance_entries",
			OldValue: map[string]any{
				"outstanding": loan.Outstanding.Add(principal).String(),
			},
			NewValue: map[string]any{
				"loan_id":        loan.ID.String(),
				"payment_id":     payment.ID.String(),
				"interest_paid":  interest.String(),
				"principal_paid": principal.String(),
				"outstanding":    loan.Outstanding.String(),
				"status":         string(loan.Status),
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return LoanPayment{}, err
	}
	return payment, nil
}

// GetLoan returns one loan.
func (s *Service) GetLoan(ctx context.Context, id uuid.UUID) (Loan, error) {
	return s.repo.GetLoan(ctx, id)
}

// ListLoans returns loans whose borrower account belongs to the branch.
func (s *Service) ListLoans(ctx context.Context, branchID uuid.UUID, limit int) ([]Loan, error) {
	return s.repo.ListLoans(ctx, branchID, limit)
}

// ListPayments returns the payment history for a loan.
func (s *Service) ListPayments(ctx context.Context, loanID uuid.UUID) ([]LoanPayment, error) {
	return s.repo.ListPayments(ctx, loanID)
}
