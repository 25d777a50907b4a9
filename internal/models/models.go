package models

import (
	"encoding/json"
	"time"

	"github.com/ddramp/exchange/internal/domain"
	"github.com/shopspring/decimal"
)

// Offer is the public view of a tradeable offer.
type Offer struct {
	ID          domain.OfferID  `json:"id"`
	BankAccount string          `json:"bank_account"`
	PublicKey   string          `json:"public_key"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   string          `json:"direction"` // "onramp" or "offramp"
}

// Preoffer is a DD sale that has not yet been seen in escrow.
type Preoffer struct {
	ID          domain.OfferID  `json:"id"`
	BankAccount string          `json:"bank_account"`
	PublicKey   string          `json:"public_key"`
	Amount      decimal.Decimal `json:"amount"`
}

// Deal is the operator view of a matched pair.
type Deal struct {
	ID                 domain.OfferID  `json:"id"`
	OnrampOfferID      domain.OfferID  `json:"onramp_offer_id"`
	OfframpOfferID     domain.OfferID  `json:"offramp_offer_id"`
	Amount             decimal.Decimal `json:"amount"`
	OnrampBankAccount  string          `json:"onramp_bank_account"`
	OfframpBankAccount string          `json:"offramp_bank_account"`
	BuyerSentFiat      bool            `json:"buyer_sent_fiat"`
	SellerReceivedFiat bool            `json:"seller_received_fiat"`
	Status             string          `json:"status"`
}

// Created is returned by the submission endpoints.
type Created struct {
	ID domain.OfferID `json:"id"`
}

// DealEvent is one audit entry for a deal or preoffer.
type DealEvent struct {
	Action    string          `json:"action"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// DealList is the operator deal listing.
type DealList struct {
	Deals          []Deal `json:"deals"`
	SettledPending int64  `json:"settled_pending"`
}
