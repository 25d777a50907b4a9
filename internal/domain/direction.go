package domain

import "fmt"

// Direction says which way an offer exchanges DD and fiat.
type Direction string

const (
	// FiatToDD is a buyer paying fiat for DD (onramp).
	FiatToDD Direction = DirectionFiatToDD
	// DDToFiat is a seller with escrowed DD wanting fiat (offramp).
	DDToFiat Direction = DirectionDDToFiat
)

// APIName returns the name used in API payloads.
func (d Direction) APIName() string {
	switch d {
	case FiatToDD:
		return APIDirectionOnramp
	case DDToFiat:
		return APIDirectionOfframp
	default:
		return string(d)
	}
}

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == FiatToDD || d == DDToFiat
}

// ParseDirection accepts either the stored or the API name.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case DirectionFiatToDD, APIDirectionOnramp:
		return FiatToDD, nil
	case DirectionDDToFiat, APIDirectionOfframp:
		return DDToFiat, nil
	default:
		return "", fmt.Errorf("unknown offer direction %q", s)
	}
}

// DealStatus derives a deal's status from its settlement flags.
func DealStatus(buyerSentFiat, sellerReceivedFiat bool) string {
	switch {
	case buyerSentFiat && sellerReceivedFiat:
		return DealStatusSettled
	case buyerSentFiat:
		return DealStatusBuyerSent
	case sellerReceivedFiat:
		return DealStatusSellerReceived
	default:
		return DealStatusAwaitingFiat
	}
}
