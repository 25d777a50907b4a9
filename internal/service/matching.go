package service

import (
	"context"
	"fmt"

	"github.com/ddramp/exchange/internal/domain"
	"github.com/ddramp/exchange/internal/observability"
	"github.com/ddramp/exchange/internal/repository"
	"go.uber.org/zap"
)

// DefaultMatchingLockKey is the advisory lock held by a matching pass.
const DefaultMatchingLockKey int64 = 0x6464_6d61_7463_6800

type offerPair struct {
	sell repository.Offer
	buy  repository.Offer
}

// pairOffers pairs each sell offer, oldest first, with the oldest buy offer
// of exactly the same amount not already taken in this pass.
func pairOffers(sells, buys []repository.Offer) []offerPair {
	consumed := make(map[int64]struct{}, len(buys))
	var pairs []offerPair
	for _, sell := range sells {
		for _, buy := range buys {
			if _, taken := consumed[buy.ID]; taken {
				continue
			}
			if !domain.AmountsEqual(sell.Amount, buy.Amount) {
				continue
			}
			consumed[buy.ID] = struct{}{}
			pairs = append(pairs, offerPair{sell: sell, buy: buy})
			break
		}
	}
	return pairs
}

// MatchingService pairs unmatched buy and sell offers into deals.
type MatchingService struct {
	store   QueryStore
	lockKey int64
	audit   *AuditService
}

func NewMatchingService(store QueryStore, lockKey int64) *MatchingService {
	if lockKey == 0 {
		lockKey = DefaultMatchingLockKey
	}
	return &MatchingService{store: store, lockKey: lockKey, audit: NewAuditService(store)}
}

// MakeMatches runs one matching pass and returns the number of deals
// created. Reads and inserts share a transaction that holds the matching
// lock, so concurrent passes cannot pair the same offer twice.
func (s *MatchingService) MakeMatches(ctx context.Context) (int, error) {
	var created []int64
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		created = created[:0]
		if err := qtx.AcquireMatchingLock(ctx, s.lockKey); err != nil {
			return fmt.Errorf("acquire matching lock: %w", err)
		}

		sells, err := qtx.ListUnmatchedOffers(ctx, domain.DirectionDDToFiat)
		if err != nil {
			return fmt.Errorf("list unmatched sell offers: %w", err)
		}
		if len(sells) == 0 {
			return nil
		}
		buys, err := qtx.ListUnmatchedOffers(ctx, domain.DirectionFiatToDD)
		if err != nil {
			return fmt.Errorf("list unmatched buy offers: %w", err)
		}

		for _, pair := range pairOffers(sells, buys) {
			dealID, err := qtx.InsertMatch(ctx, repository.InsertMatchParams{
				OnrampOfferID:  pair.buy.ID,
				OfframpOfferID: pair.sell.ID,
			})
			if err != nil {
				return fmt.Errorf("insert deal for offers %d/%d: %w", pair.buy.ID, pair.sell.ID, err)
			}
			if err := s.audit.Write(ctx, qtx, entityDeal, dealID, domain.EventDealMatched, map[string]string{
				"onramp_offer_id":  domain.OfferIDFromInt64(pair.buy.ID).String(),
				"offramp_offer_id": domain.OfferIDFromInt64(pair.sell.ID).String(),
				"amount":           pair.sell.Amount.String(),
			}); err != nil {
				return err
			}
			created = append(created, dealID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, id := range created {
		zap.L().Info("deal matched", zap.String("deal_id", domain.OfferIDFromInt64(id).String()))
	}
	observability.AddMatches(len(created))
	return len(created), nil
}
