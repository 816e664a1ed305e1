package executor

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/pumpportal"
	"lobbi-trader/internal/solana"
)

func TestDemo_DeterministicBuy(t *testing.T) {
	d := NewDemo()
	c := domain.Candidate{Mint: "AbcPump"}

	a, err := d.Buy(context.Background(), c, 0.1, domain.DefaultFilters())
	require.NoError(t, err)
	b, err := d.Buy(context.Background(), c, 0.1, domain.DefaultFilters())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 750000000.0, a.TokenAmount)
	assert.True(t, strings.HasPrefix(a.Tx, "demo_buy_"))
	assert.Len(t, strings.TrimPrefix(a.Tx, "demo_buy_"), 16)

	other, err := d.Buy(context.Background(), c, 0.2, domain.DefaultFilters())
	require.NoError(t, err)
	assert.NotEqual(t, a.Tx, other.Tx)
}

func TestDemo_SellAndBalance(t *testing.T) {
	d := NewDemo()
	res, err := d.Sell(context.Background(), "AbcPump", 750000000, domain.DefaultFilters())
	require.NoError(t, err)
	assert.Zero(t, res.SolReceived)
	assert.True(t, strings.HasPrefix(res.Tx, "demo_sell_"))

	bal, err := d.Balance(context.Background())
	require.NoError(t, err)
	assert.Nil(t, bal)
	assert.True(t, d.Demo())
}

func TestNewLive_RequiresWallet(t *testing.T) {
	_, err := NewLive(nil, nil, nil, zerolog.Nop())
	assert.True(t, errors.Is(err, ErrNoWallet))
}

type fakeSource struct {
	payer []byte
	reqs  []pumpportal.TradeRequest
}

func (f *fakeSource) Transaction(_ context.Context, req pumpportal.TradeRequest) ([]byte, error) {
	f.reqs = append(f.reqs, req)
	msg := append([]byte{0x80, 1, 0, 0, 1}, f.payer...)
	msg = append(msg, bytes.Repeat([]byte{7}, 32)...)
	return append(append([]byte{1}, make([]byte, 64)...), msg...), nil
}

type fakeRPC struct {
	sent     [][]byte
	lamports uint64
	curve    *solana.AccountInfo
}

func (f *fakeRPC) GetBalance(context.Context, string) (uint64, error) { return f.lamports, nil }
func (f *fakeRPC) GetAccountInfo(context.Context, string) (*solana.AccountInfo, error) {
	return f.curve, nil
}
func (f *fakeRPC) SendTransaction(_ context.Context, signed []byte) (string, error) {
	f.sent = append(f.sent, signed)
	return "sig" + string(rune('0'+len(f.sent))), nil
}

func curveAccount(vTok, vSol uint64) *solana.AccountInfo {
	b := make([]byte, 49)
	binary.LittleEndian.PutUint64(b[8:], vTok)
	binary.LittleEndian.PutUint64(b[16:], vSol)
	return &solana.AccountInfo{Data: base64.StdEncoding.EncodeToString(b)}
}

func TestLive_BuySignsAndSubmits(t *testing.T) {
	key := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{5}, 32))
	wallet, err := solana.LoadWallet(base58.Encode(key))
	require.NoError(t, err)
	pub := key.Public().(ed25519.PublicKey)

	src := &fakeSource{payer: pub}
	rpc := &fakeRPC{lamports: 2_000_000_000, curve: curveAccount(1_000_000_000_000_000, 30_000_000_000)}
	live, err := NewLive(wallet, rpc, src, zerolog.Nop())
	require.NoError(t, err)

	f := domain.DefaultFilters()
	fill, err := live.Buy(context.Background(), domain.Candidate{Mint: solana.PumpProgramID}, 0.1, f)
	require.NoError(t, err)
	assert.Equal(t, "sig1", fill.Tx)
	// 0.1 SOL into 30 SOL virtual reserves of 1e9 tokens.
	assert.InDelta(t, 1e9*0.1/30.1, fill.TokenAmount, 1)

	require.Len(t, src.reqs, 1)
	req := src.reqs[0]
	assert.Equal(t, pumpportal.ActionBuy, req.Action)
	assert.Equal(t, "100000000", req.Amount)
	assert.True(t, req.DenominatedInSol)
	assert.Equal(t, wallet.PublicKey(), req.PublicKey)
	assert.Equal(t, f.SlippagePercent, req.SlippagePercent)

	require.Len(t, rpc.sent, 1)
	signed := rpc.sent[0]
	assert.True(t, ed25519.Verify(pub, signed[65:], signed[1:65]))

	bal, err := live.Balance(context.Background())
	require.NoError(t, err)
	require.NotNil(t, bal)
	assert.Equal(t, 2.0, *bal)
	assert.False(t, live.Demo())
}

func TestLive_SellSendsFullBalance(t *testing.T) {
	key := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{6}, 32))
	wallet, _ := solana.LoadWallet(base58.Encode(key))
	src := &fakeSource{payer: key.Public().(ed25519.PublicKey)}
	live, err := NewLive(wallet, &fakeRPC{}, src, zerolog.Nop())
	require.NoError(t, err)

	res, err := live.Sell(context.Background(), "M", 123, domain.DefaultFilters())
	require.NoError(t, err)
	assert.Zero(t, res.SolReceived)
	assert.Equal(t, "100%", src.reqs[0].Amount)
	assert.False(t, src.reqs[0].DenominatedInSol)
}
