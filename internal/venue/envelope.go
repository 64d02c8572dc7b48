// Package venue receives encrypted swap envelopes from trading venues.
//
// An envelope carries a pool key, a plaintext trader identity and four
// ciphertext references. The venue encrypts swap fields client-side; this
// package only checks that the declared shapes are usable before the engine
// touches them.
package venue

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/sugawarayuuta/sonnet"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/fhe"
)

// CiphertextRef is the wire form of a ciphertext reference.
type CiphertextRef struct {
	Handle string `json:"handle"`
	Width  int    `json:"width"`
}

// SwapEnvelope is the wire form of an encrypted swap observation.
type SwapEnvelope struct {
	PoolKey     string        `json:"pool_key"`
	Trader      string        `json:"trader"`
	Amount      CiphertextRef `json:"amount"`
	SlippageBps CiphertextRef `json:"slippage_bps"`
	GasPrice    CiphertextRef `json:"gas_price"`
	Timestamp   CiphertextRef `json:"timestamp"`
}

// DecodeEnvelope parses and validates a raw envelope payload.
func DecodeEnvelope(payload []byte) (*SwapEnvelope, error) {
	var env SwapEnvelope
	if err := sonnet.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// Validate checks the envelope shape. Width mismatches are domain errors so
// a hostile venue cannot push a mislabeled ciphertext into the circuit.
func (e *SwapEnvelope) Validate() error {
	if e.PoolKey == "" {
		return fmt.Errorf("%w: empty pool key", domain.ErrInvalidSwap)
	}
	if err := ValidateTrader(e.Trader); err != nil {
		return err
	}

	checks := []struct {
		name  string
		ref   CiphertextRef
		width fhe.Width
	}{
		{"amount", e.Amount, fhe.U128},
		{"slippage_bps", e.SlippageBps, fhe.U64},
		{"gas_price", e.GasPrice, fhe.U64},
		{"timestamp", e.Timestamp, fhe.U32},
	}
	for _, c := range checks {
		if c.ref.Handle == "" {
			return fmt.Errorf("%w: missing %s handle", domain.ErrInvalidSwap, c.name)
		}
		if c.ref.Width != c.width.Bits() {
			return fmt.Errorf("%w: %s declared width %d, want %d",
				fhe.ErrCiphertextDomain, c.name, c.ref.Width, c.width.Bits())
		}
	}
	return nil
}

// Swap converts a validated envelope into the engine's swap type.
func (e *SwapEnvelope) Swap() *domain.EncryptedSwapData {
	return &domain.EncryptedSwapData{
		Amount:      fhe.Ciphertext{Handle: fhe.Handle(e.Amount.Handle), Width: fhe.U128},
		SlippageBps: fhe.Ciphertext{Handle: fhe.Handle(e.SlippageBps.Handle), Width: fhe.U64},
		GasPrice:    fhe.Ciphertext{Handle: fhe.Handle(e.GasPrice.Handle), Width: fhe.U64},
		Timestamp:   fhe.Ciphertext{Handle: fhe.Handle(e.Timestamp.Handle), Width: fhe.U32},
		Trader:      e.Trader,
	}
}

// ValidateTrader checks that the trader identity is a base58-encoded 32-byte
// ed25519 point. Off-curve identities are rejected.
func ValidateTrader(trader string) error {
	raw, err := base58.Decode(trader)
	if err != nil {
		return fmt.Errorf("%w: trader not base58: %v", domain.ErrInvalidSwap, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: trader key is %d bytes, want 32", domain.ErrInvalidSwap, len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("%w: trader key not on curve", domain.ErrInvalidSwap)
	}
	return nil
}
