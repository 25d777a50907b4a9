package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ddramp/exchange/internal/domain"
	"github.com/ddramp/exchange/internal/ledger"
	"github.com/ddramp/exchange/internal/observability"
	"github.com/ddramp/exchange/internal/release"
	"github.com/ddramp/exchange/internal/repository"
	"go.uber.org/zap"
)

// ReleaseConfig names the ledger accounts needed to find a buyer's token
// account.
type ReleaseConfig struct {
	TokenProgram           ledger.PublicKey
	AssociatedTokenProgram ledger.PublicKey
	DDMint                 ledger.PublicKey
}

func (c ReleaseConfig) missing() []string {
	var keys []string
	if c.TokenProgram.IsZero() {
		keys = append(keys, "TOKEN_PROGRAM")
	}
	if c.AssociatedTokenProgram.IsZero() {
		keys = append(keys, "ASSOCIATED_TOKEN_PROGRAM")
	}
	if c.DDMint.IsZero() {
		keys = append(keys, "DD_MINT")
	}
	return keys
}

// ReleaseReport summarizes one release pass.
type ReleaseReport struct {
	Settled  int
	Released []domain.OfferID
	Failed   []*ReleaseFailure
}

// ReleaseService pays out deals whose fiat legs are both confirmed.
type ReleaseService struct {
	store    QueryStore
	releaser release.Releaser
	cfg      ReleaseConfig
	audit    *AuditService
}

func NewReleaseService(store QueryStore, releaser release.Releaser, cfg ReleaseConfig) *ReleaseService {
	return &ReleaseService{
		store:    store,
		releaser: releaser,
		cfg:      cfg,
		audit:    NewAuditService(store),
	}
}

// ReleaseSettled releases every settled deal once. The release call runs
// outside any transaction; the deal and both offers are removed only after
// it succeeds. A failed release leaves the records untouched for the next
// cycle. Cancelling ctx stops the pass between deals; a release already
// started and its cleanup run to completion, bounded by the releaser's own
// timeout.
func (s *ReleaseService) ReleaseSettled(ctx context.Context) (ReleaseReport, error) {
	var report ReleaseReport
	if missing := s.cfg.missing(); len(missing) > 0 {
		return report, missingConfig(missing...)
	}

	var deals []repository.ListSettledDealsRow
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		var err error
		deals, err = qtx.ListSettledDeals(ctx)
		return err
	})
	if err != nil {
		return report, fmt.Errorf("list settled deals: %w", err)
	}
	report.Settled = len(deals)
	defer func() {
		observability.SetSettledPending(int64(report.Settled - len(report.Released)))
	}()

	for _, deal := range deals {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		dealID := domain.OfferIDFromInt64(deal.MatchID)

		destination, err := s.destination(deal.OnrampPublicKey)
		if err != nil {
			report.Failed = append(report.Failed, s.fail(dealID, deal, "", "invalid_destination", err))
			continue
		}

		dealCtx := context.WithoutCancel(ctx)
		if err := s.releaser.Release(dealCtx, deal.OfframpPublicKey, destination); err != nil {
			if errors.Is(err, release.ErrNotConfigured) {
				return report, fmt.Errorf("%w: %v", ErrMissingConfig, err)
			}
			report.Failed = append(report.Failed, s.fail(dealID, deal, destination, "release_failed", err))
			continue
		}

		if err := s.finalize(dealCtx, deal, destination); err != nil {
			observability.IncrementReleaseFailure("cleanup_failed")
			zap.L().Error("CRITICAL: escrow released but deal records were not removed",
				zap.String("deal_id", dealID.String()),
				zap.String("depositor", deal.OfframpPublicKey),
				zap.String("destination", destination),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, &ReleaseFailure{
				DealID:      dealID,
				Depositor:   deal.OfframpPublicKey,
				Destination: destination,
				Err:         fmt.Errorf("remove released deal: %w", err),
			})
			continue
		}

		report.Released = append(report.Released, dealID)
		observability.IncrementReleased()
		zap.L().Info("deal released",
			zap.String("deal_id", dealID.String()),
			zap.String("destination", destination),
			zap.String("amount", deal.Amount.String()),
		)
	}
	return report, nil
}

// destination is the buyer's associated token account for DD.
func (s *ReleaseService) destination(buyerKey string) (string, error) {
	buyer, err := ledger.ParsePublicKey(buyerKey)
	if err != nil {
		return "", err
	}
	ata, err := ledger.AssociatedTokenAddress(buyer, s.cfg.TokenProgram, s.cfg.DDMint, s.cfg.AssociatedTokenProgram)
	if err != nil {
		return "", fmt.Errorf("derive token account: %w", err)
	}
	return ata.String(), nil
}

func (s *ReleaseService) fail(dealID domain.OfferID, deal repository.ListSettledDealsRow, destination, reason string, err error) *ReleaseFailure {
	failure := &ReleaseFailure{
		DealID:      dealID,
		Depositor:   deal.OfframpPublicKey,
		Destination: destination,
		Err:         err,
	}
	observability.IncrementReleaseFailure(reason)
	zap.L().Error("release_failed",
		zap.String("deal_id", dealID.String()),
		zap.String("reason", reason),
		zap.String("depositor", deal.OfframpPublicKey),
		zap.String("destination", destination),
		zap.String("amount", deal.Amount.String()),
		zap.Error(err),
	)
	return failure
}

func (s *ReleaseService) finalize(ctx context.Context, deal repository.ListSettledDealsRow, destination string) error {
	return s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		rows, err := qtx.DeleteMatch(ctx, deal.MatchID)
		if err != nil {
			return fmt.Errorf("delete deal: %w", err)
		}
		if err := requireExactlyOne(rows, "delete released deal"); err != nil {
			return err
		}

		for _, offerID := range []int64{deal.OnrampOfferID, deal.OfframpOfferID} {
			rows, err := qtx.DeleteOffer(ctx, offerID)
			if err != nil {
				return fmt.Errorf("delete offer %s: %w", domain.OfferIDFromInt64(offerID), err)
			}
			if err := requireExactlyOne(rows, "delete released offer"); err != nil {
				return err
			}
		}

		return s.audit.Write(ctx, qtx, entityDeal, deal.MatchID, domain.EventDealReleased, map[string]string{
			"depositor":   deal.OfframpPublicKey,
			"destination": destination,
			"amount":      deal.Amount.String(),
		})
	})
}
