package repository

import (
	"context"

	"github.com/shopspring/decimal"
)

const acquireMatchingLock = `
SELECT pg_advisory_xact_lock($1)
`

// AcquireMatchingLock serializes matching passes until the surrounding
// transaction ends.
func (q *Queries) AcquireMatchingLock(ctx context.Context, key int64) error {
	_, err := q.db.Exec(ctx, acquireMatchingLock, key)
	return err
}

const insertMatch = `
INSERT INTO match (onramp_offer_id, offramp_offer_id)
VALUES ($1, $2)
RETURNING id
`

type InsertMatchParams struct {
	OnrampOfferID  int64
	OfframpOfferID int64
}

func (q *Queries) InsertMatch(ctx context.Context, arg InsertMatchParams) (int64, error) {
	row := q.db.QueryRow(ctx, insertMatch, arg.OnrampOfferID, arg.OfframpOfferID)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listDealsByBankAccount = `
SELECT
    m.id,
    bid.bank_account,
    ask.bank_account
FROM match m
JOIN offer bid ON m.onramp_offer_id = bid.id
JOIN offer ask ON m.offramp_offer_id = ask.id
WHERE bid.bank_account = $1 OR ask.bank_account = $1
ORDER BY m.id
`

type ListDealsByBankAccountRow struct {
	MatchID            int64
	OnrampBankAccount  string
	OfframpBankAccount string
}

func (q *Queries) ListDealsByBankAccount(ctx context.Context, bankAccount string) ([]ListDealsByBankAccountRow, error) {
	rows, err := q.db.Query(ctx, listDealsByBankAccount, bankAccount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListDealsByBankAccountRow
	for rows.Next() {
		var i ListDealsByBankAccountRow
		if err := rows.Scan(&i.MatchID, &i.OnrampBankAccount, &i.OfframpBankAccount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markBuyerSentFiat = `
UPDATE match SET buyer_sent_fiat = TRUE
WHERE id = $1 AND NOT buyer_sent_fiat
`

// MarkBuyerSentFiat returns 1 when the flag flipped and 0 when it was already set.
func (q *Queries) MarkBuyerSentFiat(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, markBuyerSentFiat, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const markSellerReceivedFiat = `
UPDATE match SET seller_received_fiat = TRUE
WHERE id = $1 AND NOT seller_received_fiat
`

func (q *Queries) MarkSellerReceivedFiat(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, markSellerReceivedFiat, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listSettledDeals = `
SELECT
    m.id,
    m.onramp_offer_id,
    m.offramp_offer_id,
    bid.public_key,
    ask.public_key,
    bid.bank_account,
    ask.bank_account,
    ask.amount
FROM match m
JOIN offer bid ON m.onramp_offer_id = bid.id
JOIN offer ask ON m.offramp_offer_id = ask.id
WHERE m.buyer_sent_fiat AND m.seller_received_fiat
ORDER BY m.id
`

type ListSettledDealsRow struct {
	MatchID            int64
	OnrampOfferID      int64
	OfframpOfferID     int64
	OnrampPublicKey    string
	OfframpPublicKey   string
	OnrampBankAccount  string
	OfframpBankAccount string
	Amount             decimal.Decimal
}

func (q *Queries) ListSettledDeals(ctx context.Context) ([]ListSettledDealsRow, error) {
	rows, err := q.db.Query(ctx, listSettledDeals)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListSettledDealsRow
	for rows.Next() {
		var i ListSettledDealsRow
		if err := rows.Scan(
			&i.MatchID,
			&i.OnrampOfferID,
			&i.OfframpOfferID,
			&i.OnrampPublicKey,
			&i.OfframpPublicKey,
			&i.OnrampBankAccount,
			&i.OfframpBankAccount,
			&i.Amount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countSettledDeals = `
SELECT COUNT(*) FROM match WHERE buyer_sent_fiat AND seller_received_fiat
`

func (q *Queries) CountSettledDeals(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countSettledDeals).Scan(&n)
	return n, err
}

const listDeals = `
SELECT
    m.id,
    m.onramp_offer_id,
    m.offramp_offer_id,
    ask.amount,
    bid.bank_account,
    ask.bank_account,
    m.buyer_sent_fiat,
    m.seller_received_fiat
FROM match m
JOIN offer bid ON m.onramp_offer_id = bid.id
JOIN offer ask ON m.offramp_offer_id = ask.id
ORDER BY m.id
`

type ListDealsRow struct {
	MatchID            int64
	OnrampOfferID      int64
	OfframpOfferID     int64
	Amount             decimal.Decimal
	OnrampBankAccount  string
	OfframpBankAccount string
	BuyerSentFiat      bool
	SellerReceivedFiat bool
}

func (q *Queries) ListDeals(ctx context.Context) ([]ListDealsRow, error) {
	rows, err := q.db.Query(ctx, listDeals)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListDealsRow
	for rows.Next() {
		var i ListDealsRow
		if err := rows.Scan(
			&i.MatchID,
			&i.OnrampOfferID,
			&i.OfframpOfferID,
			&i.Amount,
			&i.OnrampBankAccount,
			&i.OfframpBankAccount,
			&i.BuyerSentFiat,
			&i.SellerReceivedFiat,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getMatch = `
SELECT id, onramp_offer_id, offramp_offer_id, buyer_sent_fiat, seller_received_fiat, created_at
FROM match
WHERE id = $1
`

func (q *Queries) GetMatch(ctx context.Context, id int64) (Match, error) {
	row := q.db.QueryRow(ctx, getMatch, id)
	var i Match
	err := row.Scan(&i.ID, &i.OnrampOfferID, &i.OfframpOfferID, &i.BuyerSentFiat, &i.SellerReceivedFiat, &i.CreatedAt)
	return i, err
}

const deleteMatch = `
DELETE FROM match WHERE id = $1
`

func (q *Queries) DeleteMatch(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteMatch, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
