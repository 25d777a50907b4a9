package api_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ddramp/exchange/internal/api"
	"github.com/ddramp/exchange/internal/api/middleware"
	"github.com/ddramp/exchange/internal/config"
	"github.com/ddramp/exchange/internal/db"
	"github.com/ddramp/exchange/internal/domain"
	"github.com/ddramp/exchange/internal/idempotency"
	"github.com/ddramp/exchange/internal/models"
	"github.com/ddramp/exchange/internal/repository"
	"github.com/ddramp/exchange/internal/service"
	"github.com/ddramp/exchange/internal/testutil/dblock"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret   = "test-secret-0123456789-test-secret"
	testJWTIssuer   = "ddramp-test"
	testJWTAudience = "ddramp-operators-test"
	testReadoutKey  = "readout-test-key"
)

func TestMain(m *testing.M) {
	release := dblock.Acquire()
	code := m.Run()
	release()
	os.Exit(code)
}

func testConfig() *config.Config {
	return &config.Config{
		HTTPPort:           "0",
		JWTSecret:          testJWTSecret,
		JWTIssuer:          testJWTIssuer,
		JWTAudience:        testJWTAudience,
		ReadoutHMACKey:     testReadoutKey,
		PublicRateLimitRPS: 1000,
		IdempotencyTTL:     time.Hour,
	}
}

// setupAPI builds the router. A nil pool is enough for requests that are
// rejected before reaching storage.
func setupAPI(pool *pgxpool.Pool) http.Handler {
	cfg := testConfig()
	repo := repository.NewRepository(pool)
	store := repository.NewStore(pool)
	var idemStore *idempotency.Store
	if pool != nil {
		idemStore = idempotency.NewStore(nil, pool, cfg.IdempotencyTTL)
	}
	router := api.NewRouter(
		cfg,
		zap.NewNop(),
		repo,
		idemStore,
		nil,
		service.NewOfferService(store),
		service.NewReadoutService(store, cfg.ReadoutHMACKey, false),
		service.NewAuditService(store),
	)
	return router.Routes()
}

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("database unreachable: %v", err)
	}
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, "TRUNCATE TABLE deal_event, match, offer, preoffer, idempotency_keys RESTART IDENTITY CASCADE")
	require.NoError(t, err)
	return pool
}

func signedOfferBody(t *testing.T, seed byte, amount, bankAccount string) []byte {
	t.Helper()
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	key := ed25519.NewKeyFromSeed(s)
	pub := base58.Encode(key.Public().(ed25519.PublicKey))
	d, err := decimal.NewFromString(amount)
	require.NoError(t, err)
	sig := ed25519.Sign(key, service.OfferCleartext(d, bankAccount, pub))

	body, err := json.Marshal(map[string]any{
		"amount":      json.Number(amount),
		"bankAccount": bankAccount,
		"publicKey":   pub,
		"signature":   base58.Encode(sig),
	})
	require.NoError(t, err)
	return body
}

func generateTokenWithRole(t *testing.T, role string) string {
	t.Helper()
	middleware.SetJWTSecret(testJWTSecret)
	middleware.SetJWTValidation(testJWTIssuer, testJWTAudience)
	token, err := middleware.IssueOperatorToken("ops", role, time.Hour)
	require.NoError(t, err)
	return token
}

func computeHMAC(payload []byte, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func do(t *testing.T, h http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRFC7807ProblemDetails(t *testing.T) {
	router := setupAPI(nil)

	w := do(t, router, http.MethodGet, "/v1/offers/not-base58!", nil, map[string]string{"X-Trace-ID": "trace-123"})

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")
	assert.Equal(t, "trace-123", w.Header().Get("X-Trace-ID"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "https://errors.ddramp.dev/request/invalid-id", body["type"])
	assert.Equal(t, float64(http.StatusBadRequest), body["status"])
	assert.NotEmpty(t, body["title"])
	assert.NotEmpty(t, body["detail"])
	assert.Equal(t, "/v1/offers/not-base58!", body["instance"])
	assert.Equal(t, "trace-123", body["request_id"])
}

func TestSubmitOfferRejectsBadInput(t *testing.T) {
	router := setupAPI(nil)

	t.Run("malformed json", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/v1/offers/fiat", []byte("{"), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("forged signature", func(t *testing.T) {
		var payload map[string]any
		require.NoError(t, json.Unmarshal(signedOfferBody(t, 1, "500", "BUYER-IBAN"), &payload))
		payload["bankAccount"] = "ATTACKER-IBAN"
		body, _ := json.Marshal(payload)

		w := do(t, router, http.MethodPost, "/v1/offers/fiat", body, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "offer/invalid-signature")
	})

	t.Run("fractional amount", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/v1/offers/dd", signedOfferBody(t, 1, "1.5", "SELLER-IBAN"), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "offer/invalid")
	})
}

func TestReadoutInvalidSignature(t *testing.T) {
	router := setupAPI(nil)
	body := []byte("Date,Description,Amount,Account,Transaction ID\n2024-01-02,Transfer from BUYER-IBAN,500.00,SELLER-IBAN,tx-1\n")

	w := do(t, router, http.MethodPost, "/v1/readout", body, map[string]string{"X-Readout-Signature": computeHMAC(body, "wrong-key")})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodPost, "/v1/readout", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	router := setupAPI(nil)

	w := do(t, router, http.MethodGet, "/v1/admin/deals", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodGet, "/v1/admin/deals", nil, map[string]string{"Authorization": "Token abc"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodGet, "/v1/admin/deals", nil, map[string]string{"Authorization": "Bearer not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodGet, "/v1/admin/deals", nil, map[string]string{"Authorization": "Bearer " + generateTokenWithRole(t, "viewer")})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHealthAndDocs(t *testing.T) {
	router := setupAPI(nil)

	w := do(t, router, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	w = do(t, router, http.MethodGet, "/openapi.yaml", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "openapi: 3"))

	w = do(t, router, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubmitAndReadOffers(t *testing.T) {
	pool := setupTestDB(t)
	router := setupAPI(pool)

	w := do(t, router, http.MethodPost, "/v1/offers/fiat", signedOfferBody(t, 2, "500", "BUYER-IBAN"), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var fiat models.Created
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fiat))

	w = do(t, router, http.MethodGet, "/v1/offers/"+fiat.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var offer models.Offer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &offer))
	assert.Equal(t, fiat.ID, offer.ID)
	assert.Equal(t, "onramp", offer.Direction)
	assert.Equal(t, "BUYER-IBAN", offer.BankAccount)
	assert.True(t, offer.Amount.Equal(decimal.NewFromInt(500)))

	w = do(t, router, http.MethodPost, "/v1/offers/dd", signedOfferBody(t, 1, "500", "SELLER-IBAN"), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var dd models.Created
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dd))

	w = do(t, router, http.MethodGet, "/v1/preoffers/"+dd.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The deposit is not yet an offer.
	w = do(t, router, http.MethodGet, "/v1/offers", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var offers []models.Offer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &offers))
	require.Len(t, offers, 1)
	assert.Equal(t, fiat.ID, offers[0].ID)

	w = do(t, router, http.MethodGet, "/v1/offers/"+domain.OfferID(999).String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOfferSubmissionIdempotency(t *testing.T) {
	pool := setupTestDB(t)
	router := setupAPI(pool)
	body := signedOfferBody(t, 2, "750", "BUYER-IBAN")
	headers := map[string]string{"Idempotency-Key": "offer-key-1"}

	first := do(t, router, http.MethodPost, "/v1/offers/fiat", body, headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := do(t, router, http.MethodPost, "/v1/offers/fiat", body, headers)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "postgres", second.Header().Get("X-Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	var count int
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM offer").Scan(&count))
	assert.Equal(t, 1, count)

	other := do(t, router, http.MethodPost, "/v1/offers/fiat", signedOfferBody(t, 2, "751", "BUYER-IBAN"), headers)
	assert.Equal(t, http.StatusConflict, other.Code)
}

func TestAdminDealsAndEvents(t *testing.T) {
	pool := setupTestDB(t)
	router := setupAPI(pool)
	store := repository.NewStore(pool)
	ctx := context.Background()

	for _, p := range []repository.InsertOfferParams{
		{Amount: decimal.NewFromInt(500), BankAccount: "SELLER-IBAN", PublicKey: "seller", Direction: domain.DirectionDDToFiat},
		{Amount: decimal.NewFromInt(500), BankAccount: "BUYER-IBAN", PublicKey: "buyer", Direction: domain.DirectionFiatToDD},
	} {
		_, err := store.Queries().InsertOffer(ctx, p)
		require.NoError(t, err)
	}
	n, err := service.NewMatchingService(store, 0).MakeMatches(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	auth := map[string]string{"Authorization": "Bearer " + generateTokenWithRole(t, middleware.RoleAdmin)}

	w := do(t, router, http.MethodGet, "/v1/admin/deals", nil, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list models.DealList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Deals, 1)
	assert.Equal(t, int64(0), list.SettledPending)
	assert.Equal(t, domain.DealStatusAwaitingFiat, list.Deals[0].Status)
	assert.Equal(t, "BUYER-IBAN", list.Deals[0].OnrampBankAccount)

	body := []byte("2024-01-02,Payment BUYER-IBAN,500.00,SELLER-IBAN,tx-9\n")
	w = do(t, router, http.MethodPost, "/v1/readout", body, map[string]string{"X-Readout-Signature": computeHMAC(body, testReadoutKey)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report service.ReconciliationReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, []domain.OfferID{list.Deals[0].ID}, report.SellerReceivedFiat)

	w = do(t, router, http.MethodGet, "/v1/admin/deals/"+list.Deals[0].ID.String()+"/events", nil, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var events []models.DealEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventDealMatched, events[0].Action)
	assert.Equal(t, domain.EventSellerReceivedFiat, events[1].Action)

	w = do(t, router, http.MethodGet, "/v1/admin/deals/"+domain.OfferID(424242).String()+"/events", nil, auth)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
