// Package idhash derives deterministic identifiers from their inputs.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Compute returns the hex SHA256 of parts joined by '|' (64 characters).
func Compute(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}

// Short returns the first n hex characters of Compute. n is clamped to [1, 64].
func Short(n int, parts ...string) string {
	if n < 1 {
		n = 1
	}
	if n > sha256.Size*2 {
		n = sha256.Size * 2
	}
	return Compute(parts...)[:n]
}
