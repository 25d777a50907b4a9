package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ddramp/exchange/internal/domain"
	"github.com/ddramp/exchange/internal/observability"
	"github.com/ddramp/exchange/internal/repository"
	"go.uber.org/zap"
)

// ReconciliationReport describes the effect of one statement.
type ReconciliationReport struct {
	Records            int              `json:"records"`
	Dropped            int              `json:"dropped"`
	BuyerSentFiat      []domain.OfferID `json:"buyer_sent_fiat"`
	SellerReceivedFiat []domain.OfferID `json:"seller_received_fiat"`
}

// settlementEvidence decides which legs of a deal a statement record
// proves. The account must equal one side's bank account and the
// description must mention the other side's. Both checks stand alone, so a
// single record can prove both legs.
func settlementEvidence(rec StatementRecord, onrampBank, offrampBank string) (buyerSent, sellerReceived bool) {
	buyerSent = rec.Account == onrampBank && strings.Contains(rec.Description, offrampBank)
	sellerReceived = rec.Account == offrampBank && strings.Contains(rec.Description, onrampBank)
	return buyerSent, sellerReceived
}

// ReadoutService reconciles bank statements against live deals.
type ReadoutService struct {
	store   QueryStore
	audit   *AuditService
	hmacKey []byte
	skipSig bool
}

func NewReadoutService(store QueryStore, hmacKey string, skipSignature bool) *ReadoutService {
	return &ReadoutService{
		store:   store,
		audit:   NewAuditService(store),
		hmacKey: []byte(hmacKey),
		skipSig: skipSignature,
	}
}

// HandleReadout verifies and parses a statement export, then ingests it.
func (s *ReadoutService) HandleReadout(ctx context.Context, body []byte, signature string) (*ReconciliationReport, error) {
	if !s.verifyHMAC(body, signature) {
		return nil, ErrInvalidSignature
	}

	stmt := ParseStatement(string(body))
	observability.AddStatementLines("accepted", len(stmt.Records))
	observability.AddStatementLines("dropped", stmt.Dropped)
	if stmt.Dropped > 0 {
		zap.L().Warn("dropped malformed statement lines", zap.Int("dropped", stmt.Dropped))
	}

	report, err := s.Ingest(ctx, stmt.Records)
	if err != nil {
		return nil, err
	}
	report.Dropped = stmt.Dropped
	return report, nil
}

// Ingest sets settlement flags proven by records. Flags only ever go from
// false to true, so ingesting the same records again changes nothing.
func (s *ReadoutService) Ingest(ctx context.Context, records []StatementRecord) (*ReconciliationReport, error) {
	report := &ReconciliationReport{
		Records:            len(records),
		BuyerSentFiat:      []domain.OfferID{},
		SellerReceivedFiat: []domain.OfferID{},
	}
	if len(records) == 0 {
		return report, nil
	}

	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		report.BuyerSentFiat = report.BuyerSentFiat[:0]
		report.SellerReceivedFiat = report.SellerReceivedFiat[:0]

		for _, rec := range records {
			if rec.Account == "" {
				continue
			}
			deals, err := qtx.ListDealsByBankAccount(ctx, rec.Account)
			if err != nil {
				return fmt.Errorf("list deals for account: %w", err)
			}
			for _, deal := range deals {
				buyerSent, sellerReceived := settlementEvidence(rec, deal.OnrampBankAccount, deal.OfframpBankAccount)
				if buyerSent {
					set, err := s.markFlag(ctx, qtx, deal.MatchID, domain.EventBuyerSentFiat, rec, qtx.MarkBuyerSentFiat)
					if err != nil {
						return err
					}
					if set {
						report.BuyerSentFiat = append(report.BuyerSentFiat, domain.OfferIDFromInt64(deal.MatchID))
					}
				}
				if sellerReceived {
					set, err := s.markFlag(ctx, qtx, deal.MatchID, domain.EventSellerReceivedFiat, rec, qtx.MarkSellerReceivedFiat)
					if err != nil {
						return err
					}
					if set {
						report.SellerReceivedFiat = append(report.SellerReceivedFiat, domain.OfferIDFromInt64(deal.MatchID))
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile statement: %w", err)
	}

	for _, id := range report.BuyerSentFiat {
		observability.IncrementFlagSet(domain.EventBuyerSentFiat)
		zap.L().Info("buyer fiat transfer confirmed", zap.String("deal_id", id.String()))
	}
	for _, id := range report.SellerReceivedFiat {
		observability.IncrementFlagSet(domain.EventSellerReceivedFiat)
		zap.L().Info("seller fiat receipt confirmed", zap.String("deal_id", id.String()))
	}
	return report, nil
}

func (s *ReadoutService) markFlag(
	ctx context.Context,
	qtx *repository.Queries,
	dealID int64,
	action string,
	rec StatementRecord,
	mark func(context.Context, int64) (int64, error),
) (bool, error) {
	rows, err := mark(ctx, dealID)
	if err != nil {
		return false, fmt.Errorf("set %s on deal %s: %w", action, domain.OfferIDFromInt64(dealID), err)
	}
	if rows == 0 {
		return false, nil
	}
	if err := s.audit.Write(ctx, qtx, entityDeal, dealID, action, map[string]string{
		"transaction_id": rec.TransactionID,
		"account":        rec.Account,
		"date":           rec.Date,
		"amount":         rec.Amount.String(),
	}); err != nil {
		return false, err
	}
	return true, nil
}

// verifyHMAC checks "sha256=<hex>" over the raw body.
func (s *ReadoutService) verifyHMAC(payload []byte, signature string) bool {
	if s.skipSig {
		return true
	}
	if len(s.hmacKey) == 0 {
		return false
	}

	h := hmac.New(sha256.New, s.hmacKey)
	h.Write(payload)
	expectedSig := "sha256=" + hex.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expectedSig))
}
