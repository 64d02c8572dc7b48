package domain

import "errors"

// Engine errors surfaced to callers. None is ever swallowed internally: a
// detection engine must never substitute a default risk score for a failed
// computation.
var (
	// ErrUnknownPool is returned when no metrics or calibration exist for a
	// pool and lazy zero-initialization is disabled.
	ErrUnknownPool = errors.New("unknown pool")

	// ErrInvalidSensitivity is returned for calibration levels outside [0,100].
	ErrInvalidSensitivity = errors.New("sensitivity level out of range [0,100]")

	// ErrInvalidSwap is returned when a swap envelope is missing fields or
	// declares the wrong ciphertext widths.
	ErrInvalidSwap = errors.New("invalid encrypted swap data")

	// ErrInvalidMetrics is returned when a stored metrics record is missing
	// fields or declares the wrong ciphertext widths.
	ErrInvalidMetrics = errors.New("invalid pool metrics record")
)
