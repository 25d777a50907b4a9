package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ddramp/exchange/internal/domain"
	"github.com/ddramp/exchange/internal/ledger"
	"github.com/ddramp/exchange/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyDeposit(t *testing.T) {
	expected := decimal.RequireFromString("500")

	assert.Equal(t, depositNotReady, classifyDeposit(expected, decimal.Zero))
	assert.Equal(t, depositReady, classifyDeposit(expected, decimal.RequireFromString("500")))
	assert.Equal(t, depositReady, classifyDeposit(expected, decimal.RequireFromString("500.00")))
	assert.Equal(t, depositStale, classifyDeposit(expected, decimal.RequireFromString("499")))
	assert.Equal(t, depositStale, classifyDeposit(expected, decimal.RequireFromString("500.000001")))
}

func TestPromotionService_MissingProgramID(t *testing.T) {
	svc := NewPromotionService(nil, newFakeOracle(), ledger.PublicKey{})
	_, err := svc.PromoteAll(context.Background())
	assert.ErrorIs(t, err, ErrMissingConfig)
	assert.Contains(t, err.Error(), "PROGRAM_ID")
}

func TestPromotionService_PromoteAll(t *testing.T) {
	pool := setupTestDB(t)
	store := repository.NewStore(pool)
	ctx := context.Background()

	waiting := newTestWallet(1)
	ready := newTestWallet(2)
	stale := newTestWallet(3)

	waitingID := insertPreoffer(t, store, waiting, "500", "BANK-W")
	readyID := insertPreoffer(t, store, ready, "500", "BANK-R")
	staleID := insertPreoffer(t, store, stale, "500", "BANK-S")

	oracle := newFakeOracle()
	oracle.setEscrow(t, ready, "500")
	oracle.setEscrow(t, stale, "450")

	svc := NewPromotionService(store, oracle, mustPublicKey(t, testProgramID))
	report, err := svc.PromoteAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 1, report.Pending)
	assert.Zero(t, report.Failed)
	require.Len(t, report.Promoted, 1)
	require.Len(t, report.Stale, 1)
	assert.Equal(t, staleID, report.Stale[0].DepositID)
	assert.True(t, report.Stale[0].Observed.Equal(decimal.NewFromInt(450)))

	_, err = store.Queries().GetPreoffer(ctx, waitingID.Int64())
	assert.NoError(t, err, "zero balance leaves the deposit alone")
	_, err = store.Queries().GetPreoffer(ctx, staleID.Int64())
	assert.NoError(t, err, "mismatched balance never promotes")
	_, err = store.Queries().GetPreoffer(ctx, readyID.Int64())
	assert.Error(t, err, "promoted deposit is removed")

	offer, err := store.Queries().GetOffer(ctx, report.Promoted[0].Int64())
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionDDToFiat, offer.Direction)
	assert.Equal(t, ready.address(), offer.PublicKey)
	assert.Equal(t, "BANK-R", offer.BankAccount)
	assert.True(t, offer.Amount.Equal(decimal.NewFromInt(500)))

	events, err := store.Queries().ListDealEvents(ctx, entityPreoffer, readyID.Int64())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventPreofferPromoted, events[0].Action)

	again, err := svc.PromoteAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Promoted)
	assert.Equal(t, 1, countRows(t, pool, "offer"))
}

func TestPromotionService_OracleFailuresAreIsolated(t *testing.T) {
	pool := setupTestDB(t)
	store := repository.NewStore(pool)

	broken := newTestWallet(1)
	ready := newTestWallet(2)
	insertPreoffer(t, store, broken, "100", "BANK-B")
	insertPreoffer(t, store, ready, "200", "BANK-R")

	oracle := newFakeOracle()
	oracle.failEscrow(t, broken, errors.New("rpc timeout"))
	oracle.setEscrow(t, ready, "200")

	report, err := NewPromotionService(store, oracle, mustPublicKey(t, testProgramID)).PromoteAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Len(t, report.Promoted, 1)
}

func TestPromotionService_OracleUnreachable(t *testing.T) {
	pool := setupTestDB(t)
	store := repository.NewStore(pool)

	insertPreoffer(t, store, newTestWallet(1), "100", "BANK-1")
	insertPreoffer(t, store, newTestWallet(2), "200", "BANK-2")

	oracle := newFakeOracle()
	oracle.failAll = errors.New("connection refused")

	report, err := NewPromotionService(store, oracle, mustPublicKey(t, testProgramID)).PromoteAll(context.Background())
	assert.ErrorIs(t, err, ErrOracleUnavailable)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 2, countRows(t, pool, "preoffer"))
}

func TestPromotionService_EmptyBatch(t *testing.T) {
	pool := setupTestDB(t)
	oracle := newFakeOracle()
	oracle.failAll = errors.New("connection refused")

	report, err := NewPromotionService(repository.NewStore(pool), oracle, mustPublicKey(t, testProgramID)).PromoteAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Checked)
}
