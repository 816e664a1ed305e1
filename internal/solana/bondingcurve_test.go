package solana

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
)

const testMint = "So11111111111111111111111111111111111111112"

func curveBytes(vTok, vSol, rTok, rSol, supply uint64, complete bool) []byte {
	b := make([]byte, bondingCurveLen)
	copy(b, []byte{0x17, 0xb7, 0xf8, 0x37, 0x60, 0xd8, 0xac, 0x60})
	for i, v := range []uint64{vTok, vSol, rTok, rSol, supply} {
		binary.LittleEndian.PutUint64(b[8+i*8:], v)
	}
	if complete {
		b[48] = 1
	}
	return b
}

func TestDecodeBondingCurve(t *testing.T) {
	bc, err := DecodeBondingCurve(curveBytes(1_073_000_000_000_000, 30_000_000_000, 793_100_000_000_000, 1_250_000_000, 1_000_000_000_000_000, false))
	if err != nil {
		t.Fatalf("DecodeBondingCurve: %v", err)
	}
	if bc.VirtualSolReserves != 30_000_000_000 || bc.RealTokenReserves != 793_100_000_000_000 {
		t.Errorf("unexpected reserves %+v", bc)
	}
	if bc.RealSolReservesSol() != 1.25 {
		t.Errorf("expected 1.25 SOL real reserves, got %v", bc.RealSolReservesSol())
	}
	if bc.Complete {
		t.Error("expected incomplete curve")
	}

	if _, err := DecodeBondingCurve(make([]byte, 20)); err == nil {
		t.Error("expected error on short data")
	}
}

func TestFindProgramAddress_OffCurveAndCanonicalBump(t *testing.T) {
	mint, _ := base58.Decode(testMint)
	seeds := [][]byte{[]byte(bondingCurveSeed), mint}

	addr, bump, err := FindProgramAddress(seeds, PumpProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}
	raw, _ := base58.Decode(addr)
	if isOnCurve(raw) {
		t.Fatal("derived address must be off curve")
	}

	program, _ := base58.Decode(PumpProgramID)
	hash := func(b int) []byte {
		h := sha256.New()
		for _, s := range seeds {
			h.Write(s)
		}
		h.Write([]byte{byte(b)})
		h.Write(program)
		h.Write([]byte("ProgramDerivedAddress"))
		return h.Sum(nil)
	}
	if base58.Encode(hash(int(bump))) != addr {
		t.Errorf("address does not match bump %d", bump)
	}
	for b := 255; b > int(bump); b-- {
		if !isOnCurve(hash(b)) {
			t.Errorf("bump %d is off curve but %d was returned", b, bump)
		}
	}

	again, _ := BondingCurveAddress(testMint)
	if again != addr {
		t.Errorf("BondingCurveAddress = %s, want %s", again, addr)
	}
}

type accountRPC struct {
	info *AccountInfo
	addr string
}

func (a *accountRPC) GetBalance(context.Context, string) (uint64, error) { return 0, nil }
func (a *accountRPC) SendTransaction(context.Context, []byte) (string, error) {
	return "", nil
}
func (a *accountRPC) GetAccountInfo(_ context.Context, pubkey string) (*AccountInfo, error) {
	a.addr = pubkey
	return a.info, nil
}

func TestFetchBondingCurve(t *testing.T) {
	rpc := &accountRPC{info: &AccountInfo{Data: base64.StdEncoding.EncodeToString(curveBytes(1, 2, 3, 900_000_000, 5, true))}}

	bc, err := FetchBondingCurve(context.Background(), rpc, testMint)
	if err != nil {
		t.Fatalf("FetchBondingCurve: %v", err)
	}
	want, _ := BondingCurveAddress(testMint)
	if rpc.addr != want {
		t.Errorf("queried %s, want curve PDA %s", rpc.addr, want)
	}
	if bc.RealSolReserves != 900_000_000 || !bc.Complete {
		t.Errorf("unexpected curve %+v", bc)
	}

	rpc.info = nil
	if _, err := FetchBondingCurve(context.Background(), rpc, testMint); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestSolToLamports(t *testing.T) {
	cases := map[float64]uint64{0.1: 100_000_000, 0.123456789: 123_456_789, 1: 1_000_000_000, -1: 0}
	for sol, want := range cases {
		if got := SolToLamports(sol); got != want {
			t.Errorf("SolToLamports(%v) = %d, want %d", sol, got, want)
		}
	}
}
