package solana

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
)

func encodeCompactU16(v int) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func testKey(fill byte) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{fill}, ed25519.SeedSize))
}

// unsignedTx builds a v0 wire transaction with one empty signature slot.
func unsignedTx(payer []byte) (wire, msg []byte) {
	msg = []byte{0x80, 1, 0, 1}
	msg = append(msg, encodeCompactU16(2)...)
	msg = append(msg, payer...)
	msg = append(msg, bytes.Repeat([]byte{9}, 32)...) // program
	msg = append(msg, bytes.Repeat([]byte{7}, 32)...) // blockhash
	msg = append(msg, 0, 0)                           // no instructions, no lookups

	wire = append(encodeCompactU16(1), make([]byte, ed25519.SignatureSize)...)
	return append(wire, msg...), msg
}

func TestLoadWallet_KeypairAndSeed(t *testing.T) {
	key := testKey(1)

	w, err := LoadWallet(base58.Encode(key))
	if err != nil {
		t.Fatalf("LoadWallet keypair: %v", err)
	}
	if w.PublicKey() != base58.Encode(key.Public().(ed25519.PublicKey)) {
		t.Errorf("unexpected public key %s", w.PublicKey())
	}

	seeded, err := LoadWallet(base58.Encode(key.Seed()))
	if err != nil {
		t.Fatalf("LoadWallet seed: %v", err)
	}
	if seeded.PublicKey() != w.PublicKey() {
		t.Errorf("seed and keypair forms disagree: %s vs %s", seeded.PublicKey(), w.PublicKey())
	}
}

func TestLoadWallet_Rejects(t *testing.T) {
	tampered := append([]byte{}, testKey(1)...)
	tampered[40] ^= 0xff

	for name, secret := range map[string]string{
		"empty":      "",
		"not base58": "0OIl",
		"short":      base58.Encode([]byte{1, 2, 3}),
		"mismatch":   base58.Encode(tampered),
	} {
		if _, err := LoadWallet(secret); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("%s: expected ErrInvalidKey, got %v", name, err)
		}
	}
}

func TestWallet_SignTransaction(t *testing.T) {
	key := testKey(2)
	w, err := LoadWallet(base58.Encode(key))
	if err != nil {
		t.Fatalf("LoadWallet: %v", err)
	}
	pub := key.Public().(ed25519.PublicKey)

	wire, msg := unsignedTx(pub)
	signed, err := w.SignTransaction(wire)
	if err != nil {
		t.Fatalf("SignTransaction: %v", err)
	}
	if len(signed) != len(wire) {
		t.Fatalf("signed length %d, want %d", len(signed), len(wire))
	}
	sig := signed[1 : 1+ed25519.SignatureSize]
	if !ed25519.Verify(pub, msg, sig) {
		t.Error("signature does not verify against message")
	}
	if !bytes.Equal(signed[1+ed25519.SignatureSize:], msg) {
		t.Error("message bytes changed by signing")
	}
	if bytes.Equal(wire[1:65], sig) {
		t.Error("input slice was mutated")
	}
}

func TestWallet_SignTransactionWrongPayer(t *testing.T) {
	w, _ := LoadWallet(base58.Encode(testKey(3)))
	other := testKey(4).Public().(ed25519.PublicKey)

	wire, _ := unsignedTx(other)
	if _, err := w.SignTransaction(wire); !errors.Is(err, ErrInvalidTransaction) {
		t.Fatalf("expected ErrInvalidTransaction, got %v", err)
	}
	if _, err := w.SignTransaction([]byte{1, 0}); !errors.Is(err, ErrInvalidTransaction) {
		t.Fatalf("expected ErrInvalidTransaction on truncated input, got %v", err)
	}
}

func TestCompactU16_RoundTripBoundaries(t *testing.T) {
	for _, v := range []int{0, 1, 127, 128, 16383, 16384, 65535} {
		got, n, err := decodeCompactU16(encodeCompactU16(v))
		if err != nil || got != v || n != len(encodeCompactU16(v)) {
			t.Errorf("v=%d: got %d (size %d, err %v)", v, got, n, err)
		}
	}
}
