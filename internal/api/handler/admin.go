package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ddramp/exchange/internal/domain"
	"github.com/ddramp/exchange/internal/models"
	"github.com/ddramp/exchange/internal/repository"
	"go.uber.org/zap"
)

// DealReader is the operator read side.
type DealReader interface {
	ListDeals(ctx context.Context) ([]models.Deal, error)
	CountSettledDeals(ctx context.Context) (int64, error)
}

// DealHistory lists audit events for a deal.
type DealHistory interface {
	DealHistory(ctx context.Context, dealID domain.OfferID) ([]repository.DealEvent, error)
}

type AdminHandler struct {
	deals   DealReader
	history DealHistory
}

func NewAdminHandler(deals DealReader, history DealHistory) *AdminHandler {
	return &AdminHandler{deals: deals, history: history}
}

// ListDeals handles GET /v1/admin/deals.
func (h *AdminHandler) ListDeals(w http.ResponseWriter, r *http.Request) {
	deals, err := h.deals.ListDeals(r.Context())
	if err != nil {
		zap.L().Error("list deals failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "deal/list-failed", "Failed to list deals")
		return
	}
	settled, err := h.deals.CountSettledDeals(r.Context())
	if err != nil {
		zap.L().Error("count settled deals failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "deal/list-failed", "Failed to list deals")
		return
	}
	RespondJSON(w, http.StatusOK, models.DealList{Deals: deals, SettledPending: settled})
}

// DealEvents handles GET /v1/admin/deals/{id}/events. Events outlive the
// deal, so released deals can still be inspected.
func (h *AdminHandler) DealEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := offerIDParam(w, r)
	if !ok {
		return
	}
	events, err := h.history.DealHistory(r.Context(), id)
	if err != nil {
		zap.L().Error("list deal events failed", zap.Error(err), zap.String("deal_id", id.String()))
		RespondError(w, r, http.StatusInternalServerError, "deal/history-failed", "Failed to list deal events")
		return
	}
	if len(events) == 0 {
		RespondError(w, r, http.StatusNotFound, "deal/not-found", "no events recorded for deal")
		return
	}

	out := make([]models.DealEvent, 0, len(events))
	for _, ev := range events {
		var metadata json.RawMessage
		if len(ev.Metadata) > 0 {
			metadata = ev.Metadata
		}
		out = append(out, models.DealEvent{
			Action:    ev.Action,
			Metadata:  metadata,
			CreatedAt: ev.CreatedAt,
		})
	}
	RespondJSON(w, http.StatusOK, out)
}
