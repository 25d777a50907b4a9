package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pinger reports whether the database accepts queries.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler exposes liveness and readiness endpoints.
type HealthHandler struct {
	db          Pinger
	redis       redis.Cmdable
	missingKeys []string
}

// NewHealthHandler builds the handler. missingLedgerKeys is reported by
// readiness so operators see why settlement stages are idle.
func NewHealthHandler(db Pinger, redis redis.Cmdable, missingLedgerKeys []string) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, missingKeys: missingLedgerKeys}
}

// Live reports OK while the process serves requests.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready checks the database and, when configured, redis.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		RespondError(w, r, http.StatusServiceUnavailable, "health/database-unavailable", "database unavailable")
		return
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			RespondError(w, r, http.StatusServiceUnavailable, "health/redis-unavailable", "redis unavailable")
			return
		}
	}

	body := map[string]any{"status": "ready"}
	if len(h.missingKeys) > 0 {
		body["missing_ledger_config"] = h.missingKeys
	}
	RespondJSON(w, http.StatusOK, body)
}
