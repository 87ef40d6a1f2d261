package ledger

import (
	"crypto/rand"
	"math/big"
)

const accountNumberLength = 13

// AccountNumber generates a random 13-digit account number with a non-zero
// leading digit. Uniqueness is enforced by the database; callers retry on
// collision.
func AccountNumber() (string, error) {
	digits := make([]byte, accountNumberLength)
	first, err := rand.Int(rand.Reader, big.NewInt(9))
	if err != nil {
		return "", err
	}
	digits[0] = byte('1' + first.Int64())
	for i := 1; i < accountNumberLength; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + d.Int64())
	}
	return string(digits), nil
}
