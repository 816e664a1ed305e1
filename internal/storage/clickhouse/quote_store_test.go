package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/storage"
)

func TestQuoteStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewQuoteStore(conn)
	ctx := context.Background()

	samples := []*domain.QuoteSample{
		{TradeID: "t1", Mint: "M", TimestampMs: 2000, PriceUsd: ptr(0.00002), PnlPercent: ptr(12.5), PnlSol: ptr(0.0125), HoldSeconds: 10, Decision: domain.DecisionHold},
		{TradeID: "t1", Mint: "M", TimestampMs: 1000, HoldSeconds: 5, Decision: domain.DecisionHold},
		{TradeID: "t2", Mint: "N", TimestampMs: 1500, HoldSeconds: 5, Decision: domain.DecisionSell},
	}
	for _, s := range samples {
		require.NoError(t, store.Insert(ctx, s))
	}

	got, err := store.GetByTradeID(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[0].TimestampMs)
	assert.Nil(t, got[0].PriceUsd)
	require.NotNil(t, got[1].PnlPercent)
	assert.InDelta(t, 12.5, *got[1].PnlPercent, 1e-9)

	assert.ErrorIs(t, store.Insert(ctx, &domain.QuoteSample{}), storage.ErrInvalidInput)
}

func TestParseDSN(t *testing.T) {
	opts, err := parseDSN("clickhouse://user:pw@ch.local/quotes")
	require.NoError(t, err)
	assert.Equal(t, []string{"ch.local:9000"}, opts.Addr)
	assert.Equal(t, "user", opts.Auth.Username)
	assert.Equal(t, "pw", opts.Auth.Password)
	assert.Equal(t, "quotes", opts.Auth.Database)
}
