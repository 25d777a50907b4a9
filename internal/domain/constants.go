package domain

// Offer directions as stored in the offer table.
const (
	DirectionFiatToDD = "fiat_to_dd"
	DirectionDDToFiat = "dd_to_fiat"
)

// Offer directions as exposed over the API.
const (
	APIDirectionOnramp  = "onramp"
	APIDirectionOfframp = "offramp"
)

// Deal statuses derived from the two settlement flags.
const (
	DealStatusAwaitingFiat   = "AWAITING_FIAT"
	DealStatusBuyerSent      = "BUYER_SENT_FIAT"
	DealStatusSellerReceived = "SELLER_RECEIVED_FIAT"
	DealStatusSettled        = "SETTLED"
)

// Deal event actions written to the audit trail.
const (
	EventPreofferPromoted   = "preoffer_promoted"
	EventDealMatched        = "deal_matched"
	EventBuyerSentFiat      = "buyer_sent_fiat"
	EventSellerReceivedFiat = "seller_received_fiat"
	EventDealReleased       = "deal_released"
)
