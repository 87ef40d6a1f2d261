package ledger

import "errors"

// Rule identifies the specific validation rule a request violated.
type Rule string

const (
	RuleAmountNotPositive    Rule = "amount_not_positive"
	RuleDirectionMismatch    Rule = "direction_mismatch"
	RuleSameAccount          Rule = "same_account_transfer"
	RuleExternalRefMissing   Rule = "external_reference_missing"
	RuleExternalRefForbidden Rule = "external_reference_forbidden"
	RuleInsufficientFunds    Rule = "insufficient_funds"
	RuleUnauthorized         Rule = "unauthorized_initiator"
	RuleAccountNotActive     Rule = "account_not_active"
	RuleNotReversible        Rule = "not_reversible"
	RuleNegativeOpening      Rule = "negative_opening_balance"
)

// ValidationError reports a business-rule violation. It is always surfaced
// to the caller, never retried, and never leaves partial state behind.
type ValidationError struct {
	Rule    Rule
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Violation builds a ValidationError for the given rule.
func Violation(rule Rule, message string) *ValidationError {
	return &ValidationError{Rule: rule, Message: message}
}

// ConfigurationError reports missing required reference data, e.g. no
// designated bank operating account. It signals a deployment or seeding
// defect rather than a user error.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

var (
	// ErrNotFound indicates a referenced entity, account or transaction
	// does not resolve.
	ErrNotFound = errors.New("ledger: not found")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("ledger: duplicate")
)
