package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Apply is the single validation-and-mutation gate for money movement.
// Every path that changes an account balance (transfers, reversals, loan
// disbursement and payments, investment crediting, income) runs through it
// inside the caller's transaction scope, so no code path can update a
// balance with a different or missing set of checks.
//
// Validation is fail-fast; the first violated rule wins. On success the
// debit and credit are applied and the transaction record is inserted with
// post balances captured at commit time.
func Apply(ctx context.Context, tx TxRepository, in SubmitInput, floor decimal.Decimal) (Transaction, error) {
	if err := validate(in); err != nil {
		return Transaction{}, err
	}

	initiator, err := tx.GetEntity(ctx, in.InitiatedBy)
	if err != nil {
		return Transaction{}, err
	}

	// Lock touched accounts in ID order so concurrent transfers between the
	// same pair cannot deadlock.
	accounts := make(map[uuid.UUID]Account, 2)
	for _, id := range lockOrder(in.SenderID, in.RecipientID) {
		a, err := tx.LockAccount(ctx, id)
		if err != nil {
			return Transaction{}, err
		}
		if a.Status != AccountActive {
			return Transaction{}, Violation(RuleAccountNotActive, fmt.Sprintf("account %s is not active", a.Number))
		}
		accounts[id] = a
	}

	if in.SenderID != nil && initiator.Kind == EntityIndividual && !in.Type.SystemOriginated() {
		if accounts[*in.SenderID].OwnerID != initiator.ID {
			return Transaction{}, Violation(RuleUnauthorized, "initiator does not own the debited account")
		}
	}

	txn := Transaction{
		ID:          uuid.New(),
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		Type:        in.Type,
		Direction:   in.Direction,
		Amount:      in.Amount,
		Status:      TxnStatusCommitted,
		InitiatedBy: in.InitiatedBy,
		BranchID:    in.BranchID,
		ExternalRef: in.ExternalRef,
		Description: in.Description,
	}

	if in.SenderID != nil {
		debitFloor := &floor
		if in.floorExempt {
			debitFloor = nil
		}
		balance, err := tx.DebitAccount(ctx, *in.SenderID, in.Amount, debitFloor)
		if err != nil {
			return Transaction{}, err
		}
		txn.SenderBalance = &balance
	}
	if in.RecipientID != nil {
		balance, err := tx.CreditAccount(ctx, *in.RecipientID, in.Amount)
		if err != nil {
			return Transaction{}, err
		}
		txn.RecipientBalance = &balance
	}

	return tx.InsertTransaction(ctx, txn)
}

func validate(in SubmitInput) error {
	if !in.Amount.IsPositive() {
		return Violation(RuleAmountNotPositive, "transaction amount must be positive")
	}
	switch in.Direction {
	case DirectionInternal:
		if in.SenderID == nil || in.RecipientID == nil {
			return Violation(RuleDirectionMismatch, "internal transactions require both sender and recipient accounts")
		}
		if *in.SenderID == *in.RecipientID {
			return Violation(RuleSameAccount, "sender and recipient accounts must differ")
		}
	case DirectionExternal:
		if (in.SenderID == nil) == (in.RecipientID == nil) {
			return Violation(RuleDirectionMismatch, "external transactions require exactly one of sender or recipient")
		}
		if in.ExternalRef == "" {
			return Violation(RuleExternalRefMissing, "external transactions require an external reference")
		}
	default:
		return Violation(RuleDirectionMismatch, fmt.Sprintf("unknown direction %q", in.Direction))
	}
	return nil
}

// LockAccounts locks both accounts in the same deterministic ID order Apply
// uses, returning them in argument order. Workflows that need account state
// before calling Apply lock through it so their acquisition order cannot
// deadlock against a concurrent submission touching the same pair.
func LockAccounts(ctx context.Context, tx TxRepository, first, second uuid.UUID) (Account, Account, error) {
	locked := make(map[uuid.UUID]Account, 2)
	for _, id := range lockOrder(&first, &second) {
		a, err := tx.LockAccount(ctx, id)
		if err != nil {
			return Account{}, Account{}, err
		}
		locked[id] = a
	}
	return locked[first], locked[second], nil
}

func lockOrder(ids ...*uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != nil {
			out = append(out, *id)
		}
	}
	if len(out) == 2 && out[1].String() < out[0].String() {
		out[0], out[1] = out[1], out[0]
	}
	return out
}
