package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func newRPCServer(t *testing.T, reply func(req rpcRequest) map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := reply(req)
		resp["jsonrpc"] = "2.0"
		resp["id"] = req.ID
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRPCOracle_BalanceOf(t *testing.T) {
	account := mustKey(t, "FVX6ERSwZKcCnuAYuXQ6j7Rhku4c8LZBE6phqSxoxVdL")

	var seen rpcRequest
	srv := newRPCServer(t, func(req rpcRequest) map[string]any {
		seen = req
		return map[string]any{"result": map[string]any{
			"context": map[string]any{"slot": 1234},
			"value":   map[string]any{"amount": "500", "decimals": 6, "uiAmountString": "0.0005"},
		}}
	})

	oracle := NewRPCOracle(RPCOptions{URL: srv.URL, Timeout: time.Second})
	defer oracle.Close()

	balance, err := oracle.BalanceOf(context.Background(), account)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(500)))

	assert.Equal(t, "getTokenAccountBalance", seen.Method)
	require.Len(t, seen.Params, 2)
	var addr string
	require.NoError(t, json.Unmarshal(seen.Params[0], &addr))
	assert.Equal(t, account.String(), addr)
	var cfg map[string]string
	require.NoError(t, json.Unmarshal(seen.Params[1], &cfg))
	assert.Equal(t, "confirmed", cfg["commitment"])
}

func TestRPCOracle_MissingAccountIsZero(t *testing.T) {
	srv := newRPCServer(t, func(rpcRequest) map[string]any {
		return map[string]any{"error": map[string]any{
			"code":    -32602,
			"message": "Invalid param: could not find account",
		}}
	})

	oracle := NewRPCOracle(RPCOptions{URL: srv.URL})
	defer oracle.Close()

	balance, err := oracle.BalanceOf(context.Background(), mustKey(t, upgradeableLoader))
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestRPCOracle_OtherErrorsSurface(t *testing.T) {
	srv := newRPCServer(t, func(rpcRequest) map[string]any {
		return map[string]any{"error": map[string]any{
			"code":    -32602,
			"message": "Invalid param: not a Token account",
		}}
	})

	oracle := NewRPCOracle(RPCOptions{URL: srv.URL})
	defer oracle.Close()

	_, err := oracle.BalanceOf(context.Background(), mustKey(t, upgradeableLoader))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a Token account")
}

func TestRPCOracle_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	oracle := NewRPCOracle(RPCOptions{URL: srv.URL})
	defer oracle.Close()

	_, err := oracle.BalanceOf(context.Background(), mustKey(t, upgradeableLoader))
	assert.Error(t, err)
}

func TestRPCOracle_RequiresURL(t *testing.T) {
	_, err := NewRPCOracle(RPCOptions{}).BalanceOf(context.Background(), PublicKey{})
	assert.Error(t, err)
}
