package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/ddramp/exchange/internal/service"
	"go.uber.org/zap"
)

const (
	ReadoutSignatureHeader = "X-Readout-Signature"
	maxStatementBody       = 8 << 20
)

// ReadoutHandler accepts bank statement exports.
type ReadoutHandler struct {
	svc *service.ReadoutService
}

func NewReadoutHandler(svc *service.ReadoutService) *ReadoutHandler {
	return &ReadoutHandler{svc: svc}
}

// HandleReadout handles POST /v1/readout. The body is the raw statement;
// the signature header carries "sha256=<hex hmac>" over it.
func (h *ReadoutHandler) HandleReadout(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStatementBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(w, r, http.StatusRequestEntityTooLarge, "readout/too-large", "statement is too large")
			return
		}
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}

	report, err := h.svc.HandleReadout(r.Context(), body, r.Header.Get(ReadoutSignatureHeader))
	if err != nil {
		if errors.Is(err, service.ErrInvalidSignature) {
			RespondError(w, r, http.StatusUnauthorized, "readout/invalid-signature", "Invalid signature")
			return
		}
		zap.L().Error("process readout failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "readout/failed", "Failed to reconcile statement")
		return
	}

	RespondJSON(w, http.StatusOK, report)
}
