package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
)

// BalanceOracle reads token balances from the ledger. A missing account is a
// zero balance; any error means the balance is unknown.
type BalanceOracle interface {
	BalanceOf(ctx context.Context, account PublicKey) (decimal.Decimal, error)
}

// Solana reports unknown token accounts as invalid params.
const codeInvalidParams = -32602

// RPCOptions parameterise the JSON-RPC oracle.
type RPCOptions struct {
	URL        string
	Commitment string
	Timeout    time.Duration
}

// RPCOracle queries getTokenAccountBalance over JSON-RPC 2.0.
type RPCOracle struct {
	opts      RPCOptions
	client    *rpc.Client
	clientMux sync.Mutex
}

func NewRPCOracle(opts RPCOptions) *RPCOracle {
	if opts.Commitment == "" {
		opts.Commitment = "confirmed"
	}
	return &RPCOracle{opts: opts}
}

type tokenAmount struct {
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
}

type tokenBalanceResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value *tokenAmount `json:"value"`
}

// BalanceOf returns the raw amount in the token's smallest unit.
func (o *RPCOracle) BalanceOf(ctx context.Context, account PublicKey) (decimal.Decimal, error) {
	if o.opts.URL == "" {
		return decimal.Decimal{}, errors.New("ledger rpc url not configured")
	}

	timeout := o.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := o.getClient(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	var result tokenBalanceResult
	err = client.CallContext(ctx, &result, "getTokenAccountBalance", account.String(), map[string]string{
		"commitment": o.opts.Commitment,
	})
	if err != nil {
		if isAccountNotFound(err) {
			return decimal.Zero, nil
		}
		return decimal.Decimal{}, fmt.Errorf("get token account balance %s: %w", account, err)
	}
	if result.Value == nil {
		return decimal.Zero, nil
	}

	balance, err := decimal.NewFromString(result.Value.Amount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse balance %q of %s: %w", result.Value.Amount, account, err)
	}
	return balance, nil
}

func (o *RPCOracle) Close() {
	o.clientMux.Lock()
	defer o.clientMux.Unlock()
	if o.client != nil {
		o.client.Close()
		o.client = nil
	}
}

func (o *RPCOracle) getClient(ctx context.Context) (*rpc.Client, error) {
	o.clientMux.Lock()
	defer o.clientMux.Unlock()

	if o.client != nil {
		return o.client, nil
	}

	client, err := rpc.DialContext(ctx, o.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	o.client = client
	return client, nil
}

func isAccountNotFound(err error) bool {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return false
	}
	return rpcErr.ErrorCode() == codeInvalidParams &&
		strings.Contains(strings.ToLower(rpcErr.Error()), "could not find account")
}

var _ BalanceOracle = (*RPCOracle)(nil)
