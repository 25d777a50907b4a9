package service

import (
	"context"
	"crypto/ed25519"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ddramp/exchange/internal/db"
	"github.com/ddramp/exchange/internal/domain"
	"github.com/ddramp/exchange/internal/ledger"
	"github.com/ddramp/exchange/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	testProgramID    = "BPFLoaderUpgradeab1e11111111111111111111111"
	testTokenProgram = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	testDDMint       = "So11111111111111111111111111111111111111112"
	testATAProgram   = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
)

// setupTestDB connects to Postgres, applies migrations and empties the
// engine tables. Tests are skipped when no database is configured.
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
	_, err = pool.Exec(ctx, "TRUNCATE TABLE deal_event, match, offer, preoffer RESTART IDENTITY CASCADE")
	require.NoError(t, err)
	return pool
}

type testWallet struct {
	key ed25519.PrivateKey
	pub ledger.PublicKey
}

func newTestWallet(seed byte) testWallet {
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	key := ed25519.NewKeyFromSeed(s)
	var pub ledger.PublicKey
	copy(pub[:], key.Public().(ed25519.PublicKey))
	return testWallet{key: key, pub: pub}
}

func (w testWallet) address() string {
	return w.pub.String()
}

func (w testWallet) sign(amount, bankAccount string) SignedOffer {
	d, _ := decimal.NewFromString(amount)
	sig := ed25519.Sign(w.key, OfferCleartext(d, bankAccount, w.address()))
	return SignedOffer{
		Amount:      amount,
		BankAccount: bankAccount,
		PublicKey:   w.address(),
		Signature:   base58.Encode(sig),
	}
}

func mustPublicKey(t *testing.T, s string) ledger.PublicKey {
	t.Helper()
	pk, err := ledger.ParsePublicKey(s)
	require.NoError(t, err)
	return pk
}

func testReleaseConfig(t *testing.T) ReleaseConfig {
	return ReleaseConfig{
		TokenProgram:           mustPublicKey(t, testTokenProgram),
		AssociatedTokenProgram: mustPublicKey(t, testATAProgram),
		DDMint:                 mustPublicKey(t, testDDMint),
	}
}

// fakeOracle serves balances by escrow address.
type fakeOracle struct {
	mu       sync.Mutex
	balances map[ledger.PublicKey]decimal.Decimal
	errs     map[ledger.PublicKey]error
	failAll  error
	reads    int
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		balances: make(map[ledger.PublicKey]decimal.Decimal),
		errs:     make(map[ledger.PublicKey]error),
	}
}

func (o *fakeOracle) BalanceOf(_ context.Context, account ledger.PublicKey) (decimal.Decimal, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reads++
	if o.failAll != nil {
		return decimal.Decimal{}, o.failAll
	}
	if err, ok := o.errs[account]; ok {
		return decimal.Decimal{}, err
	}
	return o.balances[account], nil
}

func (o *fakeOracle) setEscrow(t *testing.T, depositor testWallet, amount string) {
	t.Helper()
	escrow, err := ledger.EscrowAddress(mustPublicKey(t, testProgramID), depositor.pub)
	require.NoError(t, err)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.balances[escrow] = decimal.RequireFromString(amount)
}

func (o *fakeOracle) failEscrow(t *testing.T, depositor testWallet, err error) {
	t.Helper()
	escrow, e := ledger.EscrowAddress(mustPublicKey(t, testProgramID), depositor.pub)
	require.NoError(t, e)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs[escrow] = err
}

func insertPreoffer(t *testing.T, store *repository.Store, w testWallet, amount, bank string) domain.OfferID {
	t.Helper()
	id, err := store.Queries().InsertPreoffer(context.Background(), repository.InsertPreofferParams{
		Amount:      decimal.RequireFromString(amount),
		BankAccount: bank,
		PublicKey:   w.address(),
	})
	require.NoError(t, err)
	return domain.OfferIDFromInt64(id)
}

func insertOffer(t *testing.T, store *repository.Store, w testWallet, amount, bank string, direction string) domain.OfferID {
	t.Helper()
	id, err := store.Queries().InsertOffer(context.Background(), repository.InsertOfferParams{
		Amount:      decimal.RequireFromString(amount),
		BankAccount: bank,
		PublicKey:   w.address(),
		Direction:   direction,
	})
	require.NoError(t, err)
	return domain.OfferIDFromInt64(id)
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func getMatch(t *testing.T, store *repository.Store, id domain.OfferID) repository.Match {
	t.Helper()
	m, err := store.Queries().GetMatch(context.Background(), id.Int64())
	require.NoError(t, err)
	return m
}
