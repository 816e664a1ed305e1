package solana

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

// PumpProgramID is the pump.fun bonding-curve program.
const PumpProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

const bondingCurveSeed = "bonding-curve"

// bondingCurveLen is discriminator(8) + five u64 fields + complete flag.
const bondingCurveLen = 8 + 5*8 + 1

// BondingCurve is the decoded pump.fun curve account. Amounts are raw units:
// lamports for SOL, base units for the token.
type BondingCurve struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

// RealSolReservesSol returns real SOL reserves in SOL.
func (b *BondingCurve) RealSolReservesSol() float64 {
	return LamportsToSol(b.RealSolReserves)
}

// DecodeBondingCurve parses raw account data.
func DecodeBondingCurve(data []byte) (*BondingCurve, error) {
	if len(data) < bondingCurveLen {
		return nil, fmt.Errorf("bonding curve data too short: %d", len(data))
	}
	d := data[8:]
	return &BondingCurve{
		VirtualTokenReserves: binary.LittleEndian.Uint64(d[0:]),
		VirtualSolReserves:   binary.LittleEndian.Uint64(d[8:]),
		RealTokenReserves:    binary.LittleEndian.Uint64(d[16:]),
		RealSolReserves:      binary.LittleEndian.Uint64(d[24:]),
		TokenTotalSupply:     binary.LittleEndian.Uint64(d[32:]),
		Complete:             d[40] != 0,
	}, nil
}

// BondingCurveAddress derives the curve PDA for mint.
func BondingCurveAddress(mint string) (string, error) {
	mintKey, err := decodePubkey(mint)
	if err != nil {
		return "", err
	}
	addr, _, err := FindProgramAddress([][]byte{[]byte(bondingCurveSeed), mintKey}, PumpProgramID)
	return addr, err
}

// FetchBondingCurve reads and decodes the curve for mint.
// Returns ErrAccountNotFound when the curve account does not exist.
func FetchBondingCurve(ctx context.Context, rpc RPCClient, mint string) (*BondingCurve, error) {
	addr, err := BondingCurveAddress(mint)
	if err != nil {
		return nil, err
	}
	info, err := rpc.GetAccountInfo(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("get bonding curve %s: %w", addr, err)
	}
	if info == nil || info.Data == "" {
		return nil, fmt.Errorf("bonding curve %s: %w", addr, ErrAccountNotFound)
	}
	raw, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		return nil, fmt.Errorf("decode bonding curve data: %w", err)
	}
	return DecodeBondingCurve(raw)
}

// CurveReader reads bonding curves through an RPC client.
type CurveReader struct {
	RPC RPCClient
}

// FetchBondingCurve implements the curve lookup for mint.
func (r CurveReader) FetchBondingCurve(ctx context.Context, mint string) (*BondingCurve, error) {
	return FetchBondingCurve(ctx, r.RPC, mint)
}

// FindProgramAddress returns the first off-curve address derived from seeds,
// searching bump seeds from 255 down.
func FindProgramAddress(seeds [][]byte, programID string) (string, uint8, error) {
	program, err := decodePubkey(programID)
	if err != nil {
		return "", 0, err
	}
	for _, s := range seeds {
		if len(s) > 32 {
			return "", 0, fmt.Errorf("seed longer than 32 bytes")
		}
	}

	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, s := range seeds {
			h.Write(s)
		}
		h.Write([]byte{byte(bump)})
		h.Write(program)
		h.Write([]byte("ProgramDerivedAddress"))
		sum := h.Sum(nil)

		if !isOnCurve(sum) {
			return base58.Encode(sum), uint8(bump), nil
		}
	}
	return "", 0, fmt.Errorf("no viable bump seed")
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

func decodePubkey(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode pubkey %q: %w", s, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("pubkey %q: %d bytes", s, len(b))
	}
	return b, nil
}

var lamportsPerSol = decimal.NewFromInt(LamportsPerSol)

// LamportsToSol converts lamports to SOL.
func LamportsToSol(l uint64) float64 {
	f, _ := decimal.NewFromInt(int64(l)).Div(lamportsPerSol).Float64()
	return f
}

// SolToLamports converts SOL to lamports, truncating toward zero.
func SolToLamports(sol float64) uint64 {
	d := decimal.NewFromFloat(sol).Mul(lamportsPerSol).Truncate(0)
	if d.IsNegative() {
		return 0
	}
	return d.BigInt().Uint64()
}
