package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ddramp/exchange/internal/domain"
	"github.com/ddramp/exchange/internal/models"
	"github.com/ddramp/exchange/internal/repository"
	"github.com/ddramp/exchange/internal/service"
	"go.uber.org/zap"
)

const maxOfferBody = 16 << 10

// OfferReader is the read side used by the offer endpoints.
type OfferReader interface {
	ListOffers(ctx context.Context) ([]models.Offer, error)
	GetOffer(ctx context.Context, id domain.OfferID) (*models.Offer, error)
	GetPreoffer(ctx context.Context, id domain.OfferID) (*models.Preoffer, error)
}

type OfferHandler struct {
	svc  *service.OfferService
	repo OfferReader
}

func NewOfferHandler(svc *service.OfferService, repo OfferReader) *OfferHandler {
	return &OfferHandler{svc: svc, repo: repo}
}

// OfferRequest is the wallet payload. Amount may be a JSON number or a
// string holding an integer.
type OfferRequest struct {
	Amount      Amount `json:"amount"`
	BankAccount string `json:"bankAccount"`
	PublicKey   string `json:"publicKey"`
	Signature   string `json:"signature"`
}

// Amount keeps the literal text of a numeric or quoted amount.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

// SubmitDD handles POST /v1/offers/dd. The offer waits as a preoffer
// until its escrow is funded.
func (h *OfferHandler) SubmitDD(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "dd", h.svc.SubmitDD)
}

// SubmitFiat handles POST /v1/offers/fiat.
func (h *OfferHandler) SubmitFiat(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "fiat", h.svc.SubmitFiat)
}

func (h *OfferHandler) submit(w http.ResponseWriter, r *http.Request, kind string, store func(context.Context, service.OfferSubmission) (domain.OfferID, error)) {
	r.Body = http.MaxBytesReader(w, r.Body, maxOfferBody)
	var req OfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	sub, err := service.AuthenticateOffer(service.SignedOffer{
		Amount:      string(req.Amount),
		BankAccount: req.BankAccount,
		PublicKey:   req.PublicKey,
		Signature:   req.Signature,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			RespondError(w, r, http.StatusUnauthorized, "offer/invalid-signature", err.Error())
		default:
			RespondError(w, r, http.StatusBadRequest, "offer/invalid", err.Error())
		}
		return
	}

	id, err := store(r.Context(), sub)
	if err != nil {
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		zap.L().Error("submit offer failed", zap.String("kind", kind), zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "offer/submit-failed", "Failed to record offer")
		return
	}

	RespondJSON(w, http.StatusCreated, models.Created{ID: id})
}

// List handles GET /v1/offers.
func (h *OfferHandler) List(w http.ResponseWriter, r *http.Request) {
	offers, err := h.repo.ListOffers(r.Context())
	if err != nil {
		zap.L().Error("list offers failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "offer/list-failed", "Failed to list offers")
		return
	}
	RespondJSON(w, http.StatusOK, offers)
}

// Get handles GET /v1/offers/{id}.
func (h *OfferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := offerIDParam(w, r)
	if !ok {
		return
	}
	offer, err := h.repo.GetOffer(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			RespondError(w, r, http.StatusNotFound, "offer/not-found", "offer not found")
			return
		}
		zap.L().Error("get offer failed", zap.Error(err), zap.String("offer_id", id.String()))
		RespondError(w, r, http.StatusInternalServerError, "offer/read-failed", "Failed to get offer")
		return
	}
	RespondJSON(w, http.StatusOK, offer)
}

// GetPreoffer handles GET /v1/preoffers/{id}. A promoted preoffer is gone
// and answers 404; the sell offer replacing it has a new id.
func (h *OfferHandler) GetPreoffer(w http.ResponseWriter, r *http.Request) {
	id, ok := offerIDParam(w, r)
	if !ok {
		return
	}
	preoffer, err := h.repo.GetPreoffer(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			RespondError(w, r, http.StatusNotFound, "preoffer/not-found", "preoffer not found")
			return
		}
		zap.L().Error("get preoffer failed", zap.Error(err), zap.String("preoffer_id", id.String()))
		RespondError(w, r, http.StatusInternalServerError, "preoffer/read-failed", "Failed to get preoffer")
		return
	}
	RespondJSON(w, http.StatusOK, preoffer)
}
