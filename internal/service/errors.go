package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ddramp/exchange/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrMissingConfig     = errors.New("missing configuration")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInvalidOffer      = errors.New("invalid offer")
	ErrOracleUnavailable = errors.New("balance oracle unavailable")
)

func missingConfig(keys ...string) error {
	return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(keys, ", "))
}

// StaleDepositError reports an escrow holding a nonzero amount that differs
// from what the depositor advertised. The deposit is never promoted.
type StaleDepositError struct {
	DepositID domain.OfferID
	Expected  decimal.Decimal
	Observed  decimal.Decimal
}

func (e *StaleDepositError) Error() string {
	return fmt.Sprintf("deposit %s: escrow holds %s, expected %s", e.DepositID, e.Observed, e.Expected)
}

// ReleaseFailure is a settled deal whose escrow could not be released. It
// needs operator attention when it persists across cycles.
type ReleaseFailure struct {
	DealID      domain.OfferID
	Depositor   string
	Destination string
	Err         error
}

func (e *ReleaseFailure) Error() string {
	return fmt.Sprintf("release deal %s to %s: %v", e.DealID, e.Destination, e.Err)
}

func (e *ReleaseFailure) Unwrap() error {
	return e.Err
}
