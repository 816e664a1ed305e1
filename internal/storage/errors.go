package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a buy with the same (mint, txBuy) is already recorded.
	ErrDuplicateKey = errors.New("duplicate key: buy already recorded")

	// ErrOpenPositionExists is returned when recording a buy while another position is open.
	ErrOpenPositionExists = errors.New("open position exists")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
