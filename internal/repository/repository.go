package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ddramp/exchange/internal/domain"
	"github.com/ddramp/exchange/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// Repository serves the read side of the API.
type Repository struct {
	db      *pgxpool.Pool
	queries *Queries
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, queries: New(db)}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *Repository) ListOffers(ctx context.Context) ([]models.Offer, error) {
	rows, err := r.queries.ListOffers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	offers := make([]models.Offer, 0, len(rows))
	for _, row := range rows {
		offers = append(offers, ToOfferModel(row))
	}
	return offers, nil
}

func (r *Repository) GetOffer(ctx context.Context, id domain.OfferID) (*models.Offer, error) {
	row, err := r.queries.GetOffer(ctx, id.Int64())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	offer := ToOfferModel(row)
	return &offer, nil
}

func (r *Repository) GetPreoffer(ctx context.Context, id domain.OfferID) (*models.Preoffer, error) {
	row, err := r.queries.GetPreoffer(ctx, id.Int64())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get preoffer: %w", err)
	}
	return &models.Preoffer{
		ID:          domain.OfferIDFromInt64(row.ID),
		BankAccount: row.BankAccount,
		PublicKey:   row.PublicKey,
		Amount:      row.Amount,
	}, nil
}

func (r *Repository) ListDeals(ctx context.Context) ([]models.Deal, error) {
	rows, err := r.queries.ListDeals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	deals := make([]models.Deal, 0, len(rows))
	for _, row := range rows {
		deals = append(deals, models.Deal{
			ID:                 domain.OfferIDFromInt64(row.MatchID),
			OnrampOfferID:      domain.OfferIDFromInt64(row.OnrampOfferID),
			OfframpOfferID:     domain.OfferIDFromInt64(row.OfframpOfferID),
			Amount:             row.Amount,
			OnrampBankAccount:  row.OnrampBankAccount,
			OfframpBankAccount: row.OfframpBankAccount,
			BuyerSentFiat:      row.BuyerSentFiat,
			SellerReceivedFiat: row.SellerReceivedFiat,
			Status:             domain.DealStatus(row.BuyerSentFiat, row.SellerReceivedFiat),
		})
	}
	return deals, nil
}

// CountSettledDeals counts deals with both fiat legs confirmed that still
// await release.
func (r *Repository) CountSettledDeals(ctx context.Context) (int64, error) {
	n, err := r.queries.CountSettledDeals(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count settled deals: %w", err)
	}
	return n, nil
}

// ToOfferModel converts a stored offer into its API shape.
func ToOfferModel(row Offer) models.Offer {
	return models.Offer{
		ID:          domain.OfferIDFromInt64(row.ID),
		BankAccount: row.BankAccount,
		PublicKey:   row.PublicKey,
		Amount:      row.Amount,
		Direction:   domain.Direction(row.Direction).APIName(),
	}
}
