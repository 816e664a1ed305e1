package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/ledger"
)

func TestTradeRepository_RoundTripThroughLedger(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	l := ledger.New(NewTradeRepository(dir, zerolog.Nop()), zerolog.Nop())

	rec, err := l.RecordOpenBuy(ctx, domain.OpenBuy{
		Mint:           "MintApump",
		Symbol:         "APE",
		BuySol:         0.1,
		BuyTokenAmount: 750000,
		BuyTime:        time.Now(),
		TxBuy:          "sig1",
		McapUsd:        domain.Float(21000),
	})
	require.NoError(t, err)

	// A fresh repository over the same directory sees the record.
	l2 := ledger.New(NewTradeRepository(dir, zerolog.Nop()), zerolog.Nop())
	open, err := l2.GetOpenTrade(ctx)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, rec.ID, open.ID)
	require.NotNil(t, open.McapUsd)
	assert.Equal(t, 21000.0, *open.McapUsd)

	raw, err := os.ReadFile(filepath.Join(dir, TradesFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sellTimestamp": ""`)
}

func TestTradeRepository_CorruptFileReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TradesFile), []byte("{not json"), 0o644))

	trades, err := NewTradeRepository(dir, zerolog.Nop()).LoadTrades(context.Background())
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestTradeRepository_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	repo := NewTradeRepository(dir, zerolog.Nop())
	require.NoError(t, repo.SaveTrades(context.Background(), nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, TradesFile, entries[0].Name())
}

func TestStateStore_DefaultsToIdle(t *testing.T) {
	dir := t.TempDir()
	store := NewStateStore(dir)
	ctx := context.Background()

	st, err := store.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, st.Kind)

	require.NoError(t, store.SetState(ctx, domain.AgentState{Kind: domain.StateBought, ChosenSymbol: "APE"}))
	st, err = store.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateBought, st.Kind)
	assert.Equal(t, "APE", st.ChosenSymbol)
}

func TestLock_TTLReclaim(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	now := time.Now()
	clock := func() time.Time { return now }

	a := NewLock(dir, "a", 15*time.Minute).WithClock(clock)
	b := NewLock(dir, "b", 15*time.Minute).WithClock(clock)

	ok, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second owner must not acquire a live lock")

	now = now.Add(16 * time.Minute)
	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "abandoned lock must be reclaimed")

	// a's release must not remove b's marker.
	require.NoError(t, a.Release(ctx))
	_, err = os.Stat(filepath.Join(dir, LockFile))
	assert.NoError(t, err)

	require.NoError(t, b.Release(ctx))
	_, err = os.Stat(filepath.Join(dir, LockFile))
	assert.True(t, os.IsNotExist(err))
}

func TestLock_CorruptMarkerReclaimed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LockFile), []byte("garbage"), 0o644))

	ok, err := NewLock(dir, "a", time.Minute).TryAcquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestActivityLog_AppendAndRecent(t *testing.T) {
	dir := t.TempDir()
	log := NewActivityLog(dir)
	ctx := context.Background()

	for _, msg := range []string{"scan", "pick", "buy"} {
		require.NoError(t, log.Append(ctx, domain.ActivityEntry{Type: domain.ActivityThinking, Message: msg}))
	}

	got, err := log.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "buy", got[0].Message)
	assert.Equal(t, "pick", got[1].Message)
}
