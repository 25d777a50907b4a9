package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ddramp/exchange/internal/api/problem"
	"github.com/ddramp/exchange/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// offerIDParam decodes the base58 {id} path segment.
func offerIDParam(w http.ResponseWriter, r *http.Request) (domain.OfferID, bool) {
	id, err := domain.ParseOfferID(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "id must be a base58 encoded offer id")
		return 0, false
	}
	return id, true
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "22003": // numeric_value_out_of_range
		return http.StatusBadRequest, "db/out-of-range", "amount is out of range", true
	default:
		return 0, "", "", false
	}
}
