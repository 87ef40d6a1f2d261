package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocket-bank/pocket-bank/internal/audit"
	"github.com/pocket-bank/pocket-bank/internal/balancesheet"
)

// Service coordinates ledger workflows: account opening, money movement and
// reversals. All mutations run inside a single repository transaction.
type Service struct {
	repo  Repository
	floor decimal.Decimal
	now   func() time.Time
}

// NewService builds a ledger service. floor is the reserve amount a debited
// balance may never drop below.
func NewService(repo Repository, floor decimal.Decimal) *Service {
	return &Service{repo: repo, floor: floor, now: func() time.Time { return time.Now().UTC() }}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Submit validates and commits a money-movement request. The transaction
// record, both balance updates and the audit entry commit together or not
// at all. System-originated types are reserved for the internal workflows:
// they skip the initiator ownership check inside the gate, so accepting
// them here would let any caller debit any account.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Transaction, error) {
	if in.Type.SystemOriginated() {
		return Transaction{}, Violation(RuleUnauthorized, fmt.Sprintf("transaction type %q is reserved for internal workflows", in.Type))
	}

	var txn Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		txn, err = Apply(ctx, tx, in, s.floor)
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, audit.Entry{
			ActorID: &in.InitiatedBy,
			Action:  "transaction.submit",
			Tables:  "transactions,accounts",
			NewValue: map[string]any{
				"transaction_id": txn.ID.String(),
				"type":           string(txn.Type),
				"direction":      string(txn.Direction),
				"amount":         txn.Amount.String(),
			},
			OccurredAt: s.now(),
		})
	})
	if err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

// CreateAccount opens an account for an entity. It writes the account row,
// a zero-amount opening transaction carrying the opening balance, the
// equity-capital and cash balance-sheet entries, and the audit entry, all in
// one transaction. A generated-number collision is retried with a fresh
// number.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	if in.OpeningBalance.IsNegative() {
		return Account{}, Violation(RuleNegativeOpening, "opening balance must not be negative")
	}

	var account Account
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		account, err = s.createAccount(ctx, in)
		if !errors.Is(err, ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (s *Service) createAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	number, err := AccountNumber()
	if err != nil {
		return Account{}, err
	}

	var account Account
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		owner, err := tx.GetEntity(ctx, in.OwnerID)
		if err != nil {
			return err
		}
		branchID := in.BranchID
		if branchID == uuid.Nil {
			branchID = owner.BranchID
		}
		name := in.Name
		if name == "" {
			name = owner.Name
		}

		account, err = tx.InsertAccount(ctx, Account{
			ID:          uuid.New(),
			Number:      number,
			Name:        name,
			OwnerID:     owner.ID,
			Type:        in.Type,
			BranchID:    branchID,
			Balance:     in.OpeningBalance,
			Status:      AccountActive,
			Description: in.Description,
		})
		if err != nil {
			return err
		}

		// The opening transaction is a record of the event, not a movement:
		// the balance is already set on the account row, so it bypasses the
		// movement gate and carries amount zero with the opening balance as
		// the post-commit snapshot.
		opening := in.OpeningBalance
		if _, err := tx.InsertTransaction(ctx, Transaction{
			ID:               uuid.New(),
			RecipientID:      &account.ID,
			Type:             TypeAccountCreation,
			Direction:        DirectionExternal,
			Amount:           decimal.Zero,
			RecipientBalance: &opening,
			Status:           TxnStatusCommitted,
			InitiatedBy:      owner.ID,
			BranchID:         branchID,
			ExternalRef:      "ACCT-" + number,
			Description:      "account opening",
		}); err != nil {
			return err
		}

		if opening.IsPositive() {
			if _, err := tx.AppendBalanceEntry(ctx, balancesheet.Entry{
				BranchID: branchID,
				Kind:     balancesheet.KindCapital,
				Name:     name,
				LineType: balancesheet.LineEquityCapital,
				Value:    opening,
			}); err != nil {
				return err
			}
			if _, err := tx.AppendBalanceEntry(ctx, balancesheet.Entry{
				BranchID: branchID,
				Kind:     balancesheet.KindAsset,
				Name:     name,
				LineType: balancesheet.LineCash,
				Value:    opening,
			}); err != nil {
				return err
			}
		}

		return tx.RecordAudit(ctx, audit.Entry{
			ActorID: &owner.ID,
			Action:  "account.create",
			Tables:  "accounts,transactions,balance_entries",
			NewValue: map[string]any{
				"account_id":      account.ID.String(),
				"account_number":  account.Number,
				"opening_balance": opening.String(),
			},
			OccurredAt: s.now(),
		})
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// Reverse compensates a committed transaction with a new adjustment
// transaction carrying the swapped legs, then marks the original REVERSED.
// The original record itself is never edited. The reversing debit is exempt
// from the reserve floor so the books can always be put right.
func (s *Service) Reverse(ctx context.Context, txnID, initiatedBy uuid.UUID) (Transaction, error) {
	var reversal Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		orig, err := tx.LockTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if orig.Status != TxnStatusCommitted {
			return Violation(RuleNotReversible, fmt.Sprintf("transaction %s is %s, only committed transactions can be reversed", orig.ID, orig.Status))
		}
		if !orig.Amount.IsPositive() {
			return Violation(RuleNotReversible, "zero-amount transactions cannot be reversed")
		}

		in := SubmitInput{
			SenderID:    orig.RecipientID,
			RecipientID: orig.SenderID,
			Type:        TypeAdjustment,
			Direction:   orig.Direction,
			Amount:      orig.Amount,
			InitiatedBy: initiatedBy,
			BranchID:    orig.BranchID,
			Description: "reversal of " + orig.ID.String(),
			floorExempt: true,
		}
		if in.Direction == DirectionExternal {
			in.ExternalRef = "REV-" + orig.ID.String()
		}

		reversal, err = Apply(ctx, tx, in, s.floor)
		if err != nil {
			return err
		}
		if err := tx.SetTransactionStatus(ctx, orig.ID, TxnStatusReversed); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, audit.Entry{
			ActorID:  &initiatedBy,
			Action:   "transaction.reverse",
			Tables:   "transactions,accounts",
			OldValue: map[string]any{"transaction_id": orig.ID.String(), "status": string(TxnStatusCommitted)},
			NewValue: map[string]any{
				"transaction_id": orig.ID.String(),
				"status":         string(TxnStatusReversed),
				"reversal_id":    reversal.ID.String(),
			},
			OccurredAt: s.now(),
		})
	})
	if err != nil {
		return Transaction{}, err
	}
	return reversal, nil
}

// GetAccount returns one account.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// GetTransaction returns one transaction.
func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// ListTransactions returns recent transactions for a branch.
func (s *Service) ListTransactions(ctx context.Context, branchID uuid.UUID, limit int) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, branchID, limit)
}
