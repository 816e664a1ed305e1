// Package solana provides the Solana JSON-RPC client, wallet signing and the
// pump.fun bonding-curve account reader.
package solana

import (
	"context"
	"errors"
)

// ErrAccountNotFound is returned when an account has no data on chain.
var ErrAccountNotFound = errors.New("account not found")

// LamportsPerSol is the lamport-to-SOL ratio.
const LamportsPerSol = 1_000_000_000

// RPCClient defines the Solana RPC calls the agent needs.
type RPCClient interface {
	// GetBalance returns the account balance in lamports.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetAccountInfo returns account info, or nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// SendTransaction submits a signed wire transaction and returns its signature.
	SendTransaction(ctx context.Context, signed []byte) (string, error)
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}
