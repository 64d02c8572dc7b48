package domain

import "mev-sentinel/internal/fhe"

// PoolMetrics holds the rolling encrypted statistics for one pool. Every
// field is a continuously updated running aggregate; none is ever decrypted
// inside the engine. Created lazily (zero under trivial encryption) on the
// first swap observed for a pool, mutated by every metrics fold, never
// deleted.
type PoolMetrics struct {
	AverageSwapSize        fhe.Ciphertext // euint128, EMA of swap amounts
	AverageGasPrice        fhe.Ciphertext // euint64, EMA of gas price bids
	LastLargeSwapTimestamp fhe.Ciphertext // euint32, conditionally updated
	VolatilityScore        fhe.Ciphertext // euint64 in [0,100], EMA of deviation tier
	TotalVolume24h         fhe.Ciphertext // euint128, add-only (decay is external)
}

// Validate checks that every reference is set at the declared width.
func (m *PoolMetrics) Validate() error {
	if m == nil {
		return ErrInvalidMetrics
	}
	fields := []struct {
		ct    fhe.Ciphertext
		width fhe.Width
	}{
		{m.AverageSwapSize, fhe.U128},
		{m.AverageGasPrice, fhe.U64},
		{m.LastLargeSwapTimestamp, fhe.U32},
		{m.VolatilityScore, fhe.U64},
		{m.TotalVolume24h, fhe.U128},
	}
	for _, f := range fields {
		if f.ct.IsZero() || f.ct.Width != f.width {
			return ErrInvalidMetrics
		}
	}
	return nil
}
