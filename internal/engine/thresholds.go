package engine

// Thresholds are the plaintext, sensitivity-derived parameters that feed the
// scoring and update circuits. Deriving them from the sensitivity level in
// plaintext is permitted: sensitivity is an operator policy knob, never
// trader data. Higher sensitivity always tightens detection: multipliers and
// the threat score are monotone non-increasing, the slippage floor monotone
// non-decreasing.
type Thresholds struct {
	SizeMultiplierPct  uint64 // large swap when amount > avg * pct / 100
	GasMultiplierPct   uint64 // gas anomaly when gas > avgGas * pct / 100
	MinSafeSlippageBps uint64 // tight slippage when tolerance < this
	ThreatScore        uint64 // MEV threat when riskScore >= this
	BaseLossBps        uint64 // sensitivity share of the loss estimate
}

// ForSensitivity derives thresholds for a level in [0,100].
//
// At level 0 the size bar sits at 2.0x the running average and a risk score
// of 70 is needed to flag a threat; at level 100 any amount above the average
// is large and a score of 20 flags. The size multiplier never drops below
// 100%, so amounts at or below the average can never raise the large flag.
func ForSensitivity(level uint8) Thresholds {
	s := uint64(level)
	return Thresholds{
		SizeMultiplierPct:  200 - s,
		GasMultiplierPct:   150 - s/2,
		MinSafeSlippageBps: 20 + s/2,
		ThreatScore:        70 - s/2,
		BaseLossBps:        10 + s/10,
	}
}

// Risk-score weights and mitigation constants. The three flag weights sum
// above the cap so stacked anomalies saturate; the volatility term adds up to
// 20 points on top.
const (
	weightLargeSwap     = 60
	weightGasAnomaly    = 25
	weightTightSlippage = 15
	volatilityDivisor   = 5
	riskScoreCap        = 100

	baselineBufferBps = 30 // recommended buffer absent any large-swap signal
	bufferStepBps     = 50 // added per large-swap tier

	delayAnomalySeconds = 15 // added on a gas anomaly
	delayExtremeSeconds = 30 // added again at the 2x tier

	lossVolatilityDivisor = 2     // volatility bps share of the loss estimate
	lossScaleBps          = 10000 // basis-point denominator
)

// EMA smoothing: alpha = 1/16, as (old*15 + sample)/16. A shift-friendly
// factor keeps the fold cheap on ciphertext backends.
const (
	emaKeepNumerator = 15
	emaDenominator   = 16
)

// Stepped deviation tiers feeding the volatility EMA.
const (
	volTierPoints = 50 // per tier: deviation > avg/2 and deviation > avg
)
