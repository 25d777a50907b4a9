package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrFractionalAmount  = errors.New("amount must be a whole number of smallest units")
)

// ParseAmount parses a decimal amount without any scaling.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return d, nil
}

// ValidateUnits checks that an offer amount is a positive whole number of
// the token's smallest unit. Amounts arrive pre-scaled.
func ValidateUnits(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !d.IsInteger() {
		return ErrFractionalAmount
	}
	return nil
}

// AmountsEqual compares two amounts by value; 500 and 500.00 are equal.
func AmountsEqual(a, b decimal.Decimal) bool {
	return a.Equal(b)
}
