package loans

import "errors"

var (
	// ErrNotFound indicates the loan does not exist.
	ErrNotFound = errors.New("loans: not found")
	// ErrNotActive indicates a payment against a settled loan.
	ErrNotActive = errors.New("loans: loan is not active")
	// ErrOverpayment indicates the payment exceeds what the loan owes.
	ErrOverpayment = errors.New("loans: payment exceeds outstanding balance plus interest")
	// ErrBelowInterest indicates the payment does not cover the accrued
	// interest for the period.
	ErrBelowInterest = errors.New("loans: payment does not cover period interest")
	// ErrUnknownFrequency indicates an unrecognized payment frequency.
	ErrUnknownFrequency = errors.New("loans: unknown payment frequency")
)
