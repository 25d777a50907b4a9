package service

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ddramp/exchange/internal/domain"
	"github.com/ddramp/exchange/internal/ledger"
	"github.com/ddramp/exchange/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SignedOffer is an offer as submitted by a wallet. The signature covers
// "amount\nbank_account\npublic_key" with the amount in canonical integer form.
type SignedOffer struct {
	Amount      string
	BankAccount string
	PublicKey   string
	Signature   string
}

// OfferSubmission is an authenticated offer. It can only be built by
// AuthenticateOffer, so the stores below never see unsigned input.
type OfferSubmission struct {
	amount      decimal.Decimal
	bankAccount string
	publicKey   string
}

func (s OfferSubmission) Amount() decimal.Decimal { return s.amount }
func (s OfferSubmission) BankAccount() string     { return s.bankAccount }
func (s OfferSubmission) PublicKey() string       { return s.publicKey }

// AuthenticateOffer validates the offer fields and checks the ed25519
// signature made by the offer's own public key.
func AuthenticateOffer(req SignedOffer) (OfferSubmission, error) {
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return OfferSubmission{}, fmt.Errorf("%w: %v", ErrInvalidOffer, err)
	}
	if err := domain.ValidateUnits(amount); err != nil {
		return OfferSubmission{}, fmt.Errorf("%w: %v", ErrInvalidOffer, err)
	}
	if strings.TrimSpace(req.BankAccount) == "" {
		return OfferSubmission{}, fmt.Errorf("%w: bank account is required", ErrInvalidOffer)
	}
	if strings.TrimSpace(req.BankAccount) != req.BankAccount {
		return OfferSubmission{}, fmt.Errorf("%w: bank account must not start or end with whitespace", ErrInvalidOffer)
	}
	if strings.ContainsAny(req.BankAccount, "\r\n") {
		return OfferSubmission{}, fmt.Errorf("%w: bank account must be a single line", ErrInvalidOffer)
	}

	pk, err := ledger.ParsePublicKey(req.PublicKey)
	if err != nil {
		return OfferSubmission{}, fmt.Errorf("%w: %v", ErrInvalidOffer, err)
	}
	sig := base58.Decode(req.Signature)
	if len(sig) != ed25519.SignatureSize {
		return OfferSubmission{}, fmt.Errorf("%w: expected %d signature bytes, got %d", ErrInvalidSignature, ed25519.SignatureSize, len(sig))
	}
	if !ed25519.Verify(ed25519.PublicKey(pk.Bytes()), OfferCleartext(amount, req.BankAccount, req.PublicKey), sig) {
		return OfferSubmission{}, ErrInvalidSignature
	}

	return OfferSubmission{
		amount:      amount,
		bankAccount: req.BankAccount,
		publicKey:   pk.String(),
	}, nil
}

// OfferCleartext is the message a wallet signs when submitting an offer.
func OfferCleartext(amount decimal.Decimal, bankAccount, publicKey string) []byte {
	return []byte(amount.String() + "\n" + bankAccount + "\n" + publicKey)
}

// OfferService accepts new offers and serves the public read side.
type OfferService struct {
	store QueryStore
}

func NewOfferService(store QueryStore) *OfferService {
	return &OfferService{store: store}
}

// SubmitDD records an intent to sell DD. It becomes an offer only once the
// escrow holds the advertised amount.
func (s *OfferService) SubmitDD(ctx context.Context, sub OfferSubmission) (domain.OfferID, error) {
	if sub.publicKey == "" {
		return 0, fmt.Errorf("%w: unauthenticated submission", ErrInvalidOffer)
	}
	id, err := s.store.Queries().InsertPreoffer(ctx, repository.InsertPreofferParams{
		Amount:      sub.amount,
		BankAccount: sub.bankAccount,
		PublicKey:   sub.publicKey,
	})
	if err != nil {
		return 0, fmt.Errorf("insert preoffer: %w", err)
	}
	offerID := domain.OfferIDFromInt64(id)
	zap.L().Info("preoffer created", zap.String("preoffer_id", offerID.String()), zap.String("amount", sub.amount.String()))
	return offerID, nil
}

// SubmitFiat records an intent to buy DD with fiat. It is immediately
// available for matching.
func (s *OfferService) SubmitFiat(ctx context.Context, sub OfferSubmission) (domain.OfferID, error) {
	if sub.publicKey == "" {
		return 0, fmt.Errorf("%w: unauthenticated submission", ErrInvalidOffer)
	}
	id, err := s.store.Queries().InsertOffer(ctx, repository.InsertOfferParams{
		Amount:      sub.amount,
		BankAccount: sub.bankAccount,
		PublicKey:   sub.publicKey,
		Direction:   domain.DirectionFiatToDD,
	})
	if err != nil {
		return 0, fmt.Errorf("insert offer: %w", err)
	}
	offerID := domain.OfferIDFromInt64(id)
	zap.L().Info("fiat offer created", zap.String("offer_id", offerID.String()), zap.String("amount", sub.amount.String()))
	return offerID, nil
}
