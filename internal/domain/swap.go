package domain

import "mev-sentinel/internal/fhe"

// EncryptedSwapData carries one incoming swap. Every numeric field is an
// opaque ciphertext reference; only Trader is plaintext. Constructed by the
// venue per swap request, consumed once by scoring and once by the metrics
// fold, never persisted.
type EncryptedSwapData struct {
	Amount      fhe.Ciphertext // swap amount, euint128
	SlippageBps fhe.Ciphertext // slippage tolerance in basis points, euint64
	GasPrice    fhe.Ciphertext // gas price bid, euint64
	Timestamp   fhe.Ciphertext // submission timestamp, euint32
	Trader      string         // plaintext trader identity (base58)
}

// Validate checks that every ciphertext reference is set and declares the
// width the data model requires. It cannot inspect the encrypted values;
// deeper domain checks are the coprocessor's job.
func (s *EncryptedSwapData) Validate() error {
	if s == nil || s.Trader == "" {
		return ErrInvalidSwap
	}
	fields := []struct {
		ct    fhe.Ciphertext
		width fhe.Width
	}{
		{s.Amount, fhe.U128},
		{s.SlippageBps, fhe.U64},
		{s.GasPrice, fhe.U64},
		{s.Timestamp, fhe.U32},
	}
	for _, f := range fields {
		if f.ct.IsZero() || f.ct.Width != f.width {
			return ErrInvalidSwap
		}
	}
	return nil
}
