package engine

import (
	"context"
	"fmt"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/fhe"
)

// Updater folds swaps into a pool's rolling statistics. Each call represents
// one real swap event; folding the same swap twice compounds the averages,
// so callers must not double-submit.
type Updater struct {
	cop fhe.Coprocessor
}

// NewUpdater creates an updater over the given coprocessor.
func NewUpdater(cop fhe.Coprocessor) *Updater {
	return &Updater{cop: cop}
}

// Fold returns new metrics with the swap applied. The input metrics are not
// modified.
//
//   - AverageSwapSize and AverageGasPrice move by EMA with alpha = 1/16.
//   - TotalVolume24h only accumulates; decaying the 24h window is the
//     external windowing collaborator's job.
//   - LastLargeSwapTimestamp is conditionally replaced via Select using the
//     same large-swap flag as the scoring circuit.
//   - VolatilityScore is an EMA over a stepped deviation score: 0, 50 or 100
//     points as |amount - avg| exceeds avg/2 and avg. Tiers stand in for a
//     ratio because encrypted division by an encrypted average is not part of
//     the adapter contract.
func (u *Updater) Fold(ctx context.Context, metrics *domain.PoolMetrics, swap *domain.EncryptedSwapData, level uint8) (*domain.PoolMetrics, error) {
	if err := domain.ValidateSensitivity(level); err != nil {
		return nil, err
	}
	if err := swap.Validate(); err != nil {
		return nil, err
	}
	if err := metrics.Validate(); err != nil {
		return nil, err
	}

	th := ForSensitivity(level)
	c := newCircuit(ctx, u.cop)

	avgSize := c.scalarDiv(c.add(c.scalarMul(metrics.AverageSwapSize, emaKeepNumerator), swap.Amount), emaDenominator)
	avgGas := c.scalarDiv(c.add(c.scalarMul(metrics.AverageGasPrice, emaKeepNumerator), swap.GasPrice), emaDenominator)
	volume := c.add(metrics.TotalVolume24h, swap.Amount)

	// Same large-swap flag as the scoring circuit, against the pre-fold
	// average.
	sizeThreshold := c.scalarDiv(c.scalarMul(metrics.AverageSwapSize, th.SizeMultiplierPct), 100)
	largeSwap := c.gt(swap.Amount, sizeThreshold)
	lastLarge := c.sel(largeSwap, swap.Timestamp, metrics.LastLargeSwapTimestamp)

	// |amount - avg| without branching: compute both differences, select on
	// the encrypted comparison.
	amountAbove := c.gt(swap.Amount, metrics.AverageSwapSize)
	deviation := c.sel(amountAbove,
		c.sub(swap.Amount, metrics.AverageSwapSize),
		c.sub(metrics.AverageSwapSize, swap.Amount))

	zero64 := c.enc(0, fhe.U64)
	tierHalf := c.gt(deviation, c.scalarDiv(metrics.AverageSwapSize, 2))
	tierFull := c.gt(deviation, metrics.AverageSwapSize)
	instant := c.add(
		c.sel(tierHalf, c.enc(volTierPoints, fhe.U64), zero64),
		c.sel(tierFull, c.enc(volTierPoints, fhe.U64), zero64))
	volatility := c.scalarDiv(c.add(c.scalarMul(metrics.VolatilityScore, emaKeepNumerator), instant), emaDenominator)

	if c.err != nil {
		return nil, fmt.Errorf("metrics fold circuit: %w", c.err)
	}

	return &domain.PoolMetrics{
		AverageSwapSize:        avgSize,
		AverageGasPrice:        avgGas,
		LastLargeSwapTimestamp: lastLarge,
		VolatilityScore:        volatility,
		TotalVolume24h:         volume,
	}, nil
}

// ZeroMetrics builds a trivially encrypted all-zero metrics record, used for
// lazy pool initialization.
func ZeroMetrics(ctx context.Context, cop fhe.Coprocessor) (*domain.PoolMetrics, error) {
	c := newCircuit(ctx, cop)
	m := &domain.PoolMetrics{
		AverageSwapSize:        c.enc(0, fhe.U128),
		AverageGasPrice:        c.enc(0, fhe.U64),
		LastLargeSwapTimestamp: c.enc(0, fhe.U32),
		VolatilityScore:        c.enc(0, fhe.U64),
		TotalVolume24h:         c.enc(0, fhe.U128),
	}
	if c.err != nil {
		return nil, fmt.Errorf("zero metrics: %w", c.err)
	}
	return m, nil
}
