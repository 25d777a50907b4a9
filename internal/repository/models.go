package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

type Preoffer struct {
	ID          int64
	Amount      decimal.Decimal
	BankAccount string
	PublicKey   string
	CreatedAt   time.Time
}

type Offer struct {
	ID          int64
	Amount      decimal.Decimal
	BankAccount string
	PublicKey   string
	Direction   string
	CreatedAt   time.Time
}

type Match struct {
	ID                 int64
	OnrampOfferID      int64
	OfframpOfferID     int64
	BuyerSentFiat      bool
	SellerReceivedFiat bool
	CreatedAt          time.Time
}

type IdempotencyKey struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
