package domain

// Sensitivity bounds and default. Sensitivity is a plaintext operator policy
// knob, not trader data; it is the only engine input allowed outside the
// ciphertext domain.
const (
	MinSensitivity     uint8 = 0
	MaxSensitivity     uint8 = 100
	DefaultSensitivity uint8 = 50
)

// SensitivityConfig is the per-pool calibration record.
type SensitivityConfig struct {
	Level     uint8 // detection aggressiveness in [0,100]; higher flags more
	UpdatedAt int64 // Unix timestamp in milliseconds, 0 for the default
}

// ValidateSensitivity checks the calibration range.
func ValidateSensitivity(level uint8) error {
	if level > MaxSensitivity {
		return ErrInvalidSensitivity
	}
	return nil
}
