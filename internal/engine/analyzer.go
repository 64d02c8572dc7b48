// Package engine implements the threat-scoring and metrics-fold circuits.
// Every decision over trader data is expressed as coprocessor primitives:
// comparisons yield encrypted booleans and both branches of every conditional
// are computed and merged with Select, so control flow never depends on a
// secret value.
package engine

import (
	"context"
	"fmt"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/fhe"
)

// Analyzer scores swaps against a pool's rolling statistics. It is a pure
// reader: it never mutates metrics and keeps no state of its own beyond the
// coprocessor reference.
type Analyzer struct {
	cop fhe.Coprocessor
}

// NewAnalyzer creates an analyzer over the given coprocessor.
func NewAnalyzer(cop fhe.Coprocessor) *Analyzer {
	return &Analyzer{cop: cop}
}

// Analyze produces a ThreatAssessment for one swap.
//
// The circuit, in order:
//  1. large-swap flag: amount > avg * sizeMultiplier, with a second tier at
//     twice that threshold,
//  2. gas-anomaly flag: gasPrice > avgGas * gasMultiplier, second tier at 2x,
//  3. tight-slippage flag: slippage < sensitivity-derived floor,
//  4. risk score: weighted sum of the flags plus a volatility share, clamped
//     to 100 by select-min,
//  5. threat flag: riskScore >= sensitivity-derived threshold,
//  6. slippage buffer: baseline plus a step per large-swap tier,
//  7. delay: zero plus a step per gas tier,
//  8. loss estimate: amount * (baseLossBps + volatility/2) / 10000.
//
// On any primitive failure the assessment is discarded entirely; a partial
// result is never returned.
func (a *Analyzer) Analyze(ctx context.Context, swap *domain.EncryptedSwapData, metrics *domain.PoolMetrics, level uint8) (*domain.ThreatAssessment, error) {
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
	c := newCircuit(ctx, a.cop)

	zero64 := c.enc(0, fhe.U64)
	zero32 := c.enc(0, fhe.U32)

	// Step 1: size deviation.
	sizeThreshold := c.scalarDiv(c.scalarMul(metrics.AverageSwapSize, th.SizeMultiplierPct), 100)
	largeSwap := c.gt(swap.Amount, sizeThreshold)
	veryLargeSwap := c.gt(swap.Amount, c.scalarMul(sizeThreshold, 2))

	// Step 2: gas-price anomaly. Elevated bids correlate with competitive
	// MEV bidding.
	gasThreshold := c.scalarDiv(c.scalarMul(metrics.AverageGasPrice, th.GasMultiplierPct), 100)
	gasAnomaly := c.gt(swap.GasPrice, gasThreshold)
	gasExtreme := c.gt(swap.GasPrice, c.scalarMul(gasThreshold, 2))

	// Step 3: tight slippage invites sandwiching.
	tightSlippage := c.ltScalar(swap.SlippageBps, th.MinSafeSlippageBps)

	// Step 4: weighted risk score, clamped to the cap.
	risk := c.sel(largeSwap, c.enc(weightLargeSwap, fhe.U64), zero64)
	risk = c.add(risk, c.sel(gasAnomaly, c.enc(weightGasAnomaly, fhe.U64), zero64))
	risk = c.add(risk, c.sel(tightSlippage, c.enc(weightTightSlippage, fhe.U64), zero64))
	risk = c.add(risk, c.scalarDiv(metrics.VolatilityScore, volatilityDivisor))
	overCap := c.gtScalar(risk, riskScoreCap)
	risk = c.sel(overCap, c.enc(riskScoreCap, fhe.U64), risk)

	// Step 5: riskScore >= threshold, as NOT(riskScore < threshold).
	threat := c.not(c.ltScalar(risk, th.ThreatScore))

	// Step 6: stepped buffer, proportional to the size-deviation tier.
	buffer := c.enc(baselineBufferBps, fhe.U64)
	buffer = c.add(buffer, c.sel(largeSwap, c.enc(bufferStepBps, fhe.U64), zero64))
	buffer = c.add(buffer, c.sel(veryLargeSwap, c.enc(bufferStepBps, fhe.U64), zero64))

	// Step 7: stepped delay, proportional to the gas-anomaly tier.
	delay := c.sel(gasAnomaly, c.enc(delayAnomalySeconds, fhe.U32), zero32)
	delay = c.add(delay, c.sel(gasExtreme, c.enc(delayExtremeSeconds, fhe.U32), zero32))

	// Step 8: expected extractable value in the swap's own units.
	lossBps := c.add(c.enc(th.BaseLossBps, fhe.U64), c.scalarDiv(metrics.VolatilityScore, lossVolatilityDivisor))
	loss := c.scalarDiv(c.mul(swap.Amount, c.cast(lossBps, fhe.U128)), lossScaleBps)

	if c.err != nil {
		return nil, fmt.Errorf("threat scoring circuit: %w", c.err)
	}

	return &domain.ThreatAssessment{
		RiskScore:                    risk,
		IsMevThreat:                  threat,
		RecommendedSlippageBufferBps: buffer,
		RecommendedDelaySeconds:      delay,
		EstimatedMevLoss:             loss,
	}, nil
}
