package service

import (
	"context"
	"fmt"

	"github.com/ddramp/exchange/internal/domain"
	"github.com/ddramp/exchange/internal/ledger"
	"github.com/ddramp/exchange/internal/observability"
	"github.com/ddramp/exchange/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type depositState int

const (
	depositNotReady depositState = iota
	depositReady
	depositStale
)

// classifyDeposit compares the escrow balance with the advertised amount.
// An empty escrow means the depositor has not paid in yet.
func classifyDeposit(expected, observed decimal.Decimal) depositState {
	switch {
	case observed.IsZero():
		return depositNotReady
	case domain.AmountsEqual(expected, observed):
		return depositReady
	default:
		return depositStale
	}
}

// PromotionReport summarizes one promotion pass.
type PromotionReport struct {
	Checked  int
	Promoted []domain.OfferID
	Pending  int
	Stale    []*StaleDepositError
	Failed   int
}

// PromotionService turns preoffers into sell offers once their escrow holds
// exactly the advertised amount.
type PromotionService struct {
	store     QueryStore
	oracle    ledger.BalanceOracle
	programID ledger.PublicKey
	audit     *AuditService
}

func NewPromotionService(store QueryStore, oracle ledger.BalanceOracle, programID ledger.PublicKey) *PromotionService {
	return &PromotionService{
		store:     store,
		oracle:    oracle,
		programID: programID,
		audit:     NewAuditService(store),
	}
}

// PromoteAll checks every preoffer, oldest first. Per-deposit problems are
// logged and counted; the pass fails as a whole only when the preoffers
// cannot be listed or no balance read succeeded.
func (s *PromotionService) PromoteAll(ctx context.Context) (PromotionReport, error) {
	var report PromotionReport
	if s.programID.IsZero() {
		return report, missingConfig("PROGRAM_ID")
	}

	deposits, err := s.store.Queries().ListPreoffers(ctx)
	if err != nil {
		return report, fmt.Errorf("list preoffers: %w", err)
	}

	var reads, readFailures int
	for _, deposit := range deposits {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		depositID := domain.OfferIDFromInt64(deposit.ID)
		logger := zap.L().With(zap.String("preoffer_id", depositID.String()))

		depositor, err := ledger.ParsePublicKey(deposit.PublicKey)
		if err != nil {
			report.Failed++
			observability.IncrementDepositCheck("failed")
			logger.Error("preoffer has an unusable public key", zap.Error(err))
			continue
		}
		escrow, err := ledger.EscrowAddress(s.programID, depositor)
		if err != nil {
			report.Failed++
			observability.IncrementDepositCheck("failed")
			logger.Error("failed to derive escrow address", zap.Error(err))
			continue
		}

		reads++
		balance, err := s.oracle.BalanceOf(ctx, escrow)
		if err != nil {
			readFailures++
			report.Failed++
			observability.IncrementDepositCheck("failed")
			logger.Warn("escrow balance read failed", zap.String("escrow", escrow.String()), zap.Error(err))
			continue
		}

		switch classifyDeposit(deposit.Amount, balance) {
		case depositNotReady:
			report.Pending++
			observability.IncrementDepositCheck("pending")
		case depositStale:
			stale := &StaleDepositError{DepositID: depositID, Expected: deposit.Amount, Observed: balance}
			report.Stale = append(report.Stale, stale)
			observability.IncrementDepositCheck("stale")
			logger.Warn("stale preoffer", zap.String("escrow", escrow.String()), zap.Error(stale))
		case depositReady:
			offerID, err := s.promote(ctx, deposit, escrow)
			if err != nil {
				report.Failed++
				observability.IncrementDepositCheck("failed")
				logger.Error("failed to promote preoffer", zap.Error(err))
				continue
			}
			report.Promoted = append(report.Promoted, offerID)
			observability.IncrementDepositCheck("promoted")
			logger.Info("preoffer promoted", zap.String("offer_id", offerID.String()), zap.String("amount", deposit.Amount.String()))
		}
	}

	if reads > 0 && readFailures == reads {
		return report, fmt.Errorf("%w: all %d balance reads failed", ErrOracleUnavailable, reads)
	}
	return report, nil
}

// promote replaces the preoffer with a sell offer in one transaction. The
// exact-one delete keeps two concurrent passes from both promoting it.
func (s *PromotionService) promote(ctx context.Context, deposit repository.Preoffer, escrow ledger.PublicKey) (domain.OfferID, error) {
	var offerID int64
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		rows, err := qtx.DeletePreoffer(ctx, deposit.ID)
		if err != nil {
			return fmt.Errorf("delete preoffer: %w", err)
		}
		if err := requireExactlyOne(rows, "delete promoted preoffer"); err != nil {
			return err
		}

		offerID, err = qtx.InsertOffer(ctx, repository.InsertOfferParams{
			Amount:      deposit.Amount,
			BankAccount: deposit.BankAccount,
			PublicKey:   deposit.PublicKey,
			Direction:   domain.DirectionDDToFiat,
		})
		if err != nil {
			return fmt.Errorf("insert sell offer: %w", err)
		}

		return s.audit.Write(ctx, qtx, entityPreoffer, deposit.ID, domain.EventPreofferPromoted, map[string]string{
			"offer_id": domain.OfferIDFromInt64(offerID).String(),
			"escrow":   escrow.String(),
			"amount":   deposit.Amount.String(),
		})
	})
	if err != nil {
		return 0, err
	}
	return domain.OfferIDFromInt64(offerID), nil
}
