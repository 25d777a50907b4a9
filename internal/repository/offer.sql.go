package repository

import (
	"context"

	"github.com/shopspring/decimal"
)

const insertPreoffer = `
INSERT INTO preoffer (amount, bank_account, public_key)
VALUES ($1, $2, $3)
RETURNING id
`

type InsertPreofferParams struct {
	Amount      decimal.Decimal
	BankAccount string
	PublicKey   string
}

func (q *Queries) InsertPreoffer(ctx context.Context, arg InsertPreofferParams) (int64, error) {
	row := q.db.QueryRow(ctx, insertPreoffer, arg.Amount, arg.BankAccount, arg.PublicKey)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listPreoffers = `
SELECT id, amount, bank_account, public_key, created_at
FROM preoffer
ORDER BY id
`

func (q *Queries) ListPreoffers(ctx context.Context) ([]Preoffer, error) {
	rows, err := q.db.Query(ctx, listPreoffers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Preoffer
	for rows.Next() {
		var i Preoffer
		if err := rows.Scan(&i.ID, &i.Amount, &i.BankAccount, &i.PublicKey, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getPreoffer = `
SELECT id, amount, bank_account, public_key, created_at
FROM preoffer
WHERE id = $1
`

func (q *Queries) GetPreoffer(ctx context.Context, id int64) (Preoffer, error) {
	row := q.db.QueryRow(ctx, getPreoffer, id)
	var i Preoffer
	err := row.Scan(&i.ID, &i.Amount, &i.BankAccount, &i.PublicKey, &i.CreatedAt)
	return i, err
}

const deletePreoffer = `
DELETE FROM preoffer WHERE id = $1
`

func (q *Queries) DeletePreoffer(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deletePreoffer, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const insertOffer = `
INSERT INTO offer (amount, bank_account, public_key, direction)
VALUES ($1, $2, $3, $4)
RETURNING id
`

type InsertOfferParams struct {
	Amount      decimal.Decimal
	BankAccount string
	PublicKey   string
	Direction   string
}

func (q *Queries) InsertOffer(ctx context.Context, arg InsertOfferParams) (int64, error) {
	row := q.db.QueryRow(ctx, insertOffer, arg.Amount, arg.BankAccount, arg.PublicKey, arg.Direction)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getOffer = `
SELECT id, amount, bank_account, public_key, direction, created_at
FROM offer
WHERE id = $1
`

func (q *Queries) GetOffer(ctx context.Context, id int64) (Offer, error) {
	row := q.db.QueryRow(ctx, getOffer, id)
	var i Offer
	err := row.Scan(&i.ID, &i.Amount, &i.BankAccount, &i.PublicKey, &i.Direction, &i.CreatedAt)
	return i, err
}

const listOffers = `
SELECT id, amount, bank_account, public_key, direction, created_at
FROM offer
ORDER BY id
`

func (q *Queries) ListOffers(ctx context.Context) ([]Offer, error) {
	return q.scanOffers(ctx, listOffers)
}

// Offers already referenced by a deal are excluded, whichever side they are on.
const listUnmatchedOffers = `
SELECT id, amount, bank_account, public_key, direction, created_at
FROM offer
WHERE direction = $1
  AND NOT EXISTS (
    SELECT 1 FROM match m
    WHERE m.onramp_offer_id = offer.id OR m.offramp_offer_id = offer.id
  )
ORDER BY id
`

func (q *Queries) ListUnmatchedOffers(ctx context.Context, direction string) ([]Offer, error) {
	return q.scanOffers(ctx, listUnmatchedOffers, direction)
}

const deleteOffer = `
DELETE FROM offer WHERE id = $1
`

func (q *Queries) DeleteOffer(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOffer, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (q *Queries) scanOffers(ctx context.Context, sql string, args ...interface{}) ([]Offer, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Offer
	for rows.Next() {
		var i Offer
		if err := rows.Scan(&i.ID, &i.Amount, &i.BankAccount, &i.PublicKey, &i.Direction, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
