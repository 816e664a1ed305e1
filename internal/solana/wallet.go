package solana

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// ErrInvalidKey is returned for malformed wallet secrets.
var ErrInvalidKey = errors.New("invalid wallet key")

// ErrInvalidTransaction is returned when a wire transaction cannot be parsed.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Wallet is an ed25519 signing key.
type Wallet struct {
	key ed25519.PrivateKey
	pub ed25519.PublicKey
}

// LoadWallet decodes a base58 secret. Both the 64-byte keypair form exported
// by Solana wallets and a bare 32-byte seed are accepted.
func LoadWallet(secret string) (*Wallet, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	var key ed25519.PrivateKey
	switch len(raw) {
	case ed25519.PrivateKeySize:
		key = ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !bytes.Equal(key[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
			return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidKey)
		}
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(raw)
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKey, len(raw))
	}

	return &Wallet{key: key, pub: key.Public().(ed25519.PublicKey)}, nil
}

// PublicKey returns the base58 address.
func (w *Wallet) PublicKey() string {
	return base58.Encode(w.pub)
}

// Sign signs msg.
func (w *Wallet) Sign(msg []byte) []byte {
	return ed25519.Sign(w.key, msg)
}

// SignTransaction signs a serialized versioned transaction whose fee payer is
// this wallet and returns the wire bytes with signature slot 0 filled.
//
// Wire layout: compact-u16 signature count, 64-byte signatures, message.
func (w *Wallet) SignTransaction(wire []byte) ([]byte, error) {
	n, off, err := decodeCompactU16(wire)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: no signature slots", ErrInvalidTransaction)
	}
	sigEnd := off + n*ed25519.SignatureSize
	if sigEnd > len(wire) {
		return nil, fmt.Errorf("%w: truncated signatures", ErrInvalidTransaction)
	}
	msg := wire[sigEnd:]

	payer, err := feePayer(msg)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(payer, w.pub) {
		return nil, fmt.Errorf("%w: fee payer %s is not this wallet", ErrInvalidTransaction, base58.Encode(payer))
	}

	out := make([]byte, len(wire))
	copy(out, wire)
	copy(out[off:off+ed25519.SignatureSize], w.Sign(msg))
	return out, nil
}

// feePayer returns the first static account key of a legacy or v0 message.
func feePayer(msg []byte) ([]byte, error) {
	i := 0
	if len(msg) > 0 && msg[0]&0x80 != 0 {
		i++ // version prefix
	}
	i += 3 // header
	if i > len(msg) {
		return nil, fmt.Errorf("%w: truncated header", ErrInvalidTransaction)
	}
	keys, n, err := decodeCompactU16(msg[i:])
	if err != nil {
		return nil, err
	}
	i += n
	if keys < 1 || i+32 > len(msg) {
		return nil, fmt.Errorf("%w: missing account keys", ErrInvalidTransaction)
	}
	return msg[i : i+32], nil
}

// decodeCompactU16 reads Solana's short-vec length prefix.
func decodeCompactU16(b []byte) (value, size int, err error) {
	for size < 3 {
		if size >= len(b) {
			return 0, 0, fmt.Errorf("%w: truncated length", ErrInvalidTransaction)
		}
		v := int(b[size])
		value |= (v & 0x7f) << (7 * size)
		size++
		if v&0x80 == 0 {
			return value, size, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: length overflow", ErrInvalidTransaction)
}
