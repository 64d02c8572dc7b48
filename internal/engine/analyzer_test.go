package engine

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/fhe"
	"mev-sentinel/internal/fhe/sim"
)

const testTrader = "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi"

func encryptTestSwap(t *testing.T, cop *sim.Coprocessor, amount, slippageBps, gasPrice, timestamp uint64) *domain.EncryptedSwapData {
	t.Helper()
	enc := func(v uint64, w fhe.Width) fhe.Ciphertext {
		ct, err := cop.EncryptUint64(v, w)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		return ct
	}
	return &domain.EncryptedSwapData{
		Amount:      enc(amount, fhe.U128),
		SlippageBps: enc(slippageBps, fhe.U64),
		GasPrice:    enc(gasPrice, fhe.U64),
		Timestamp:   enc(timestamp, fhe.U32),
		Trader:      testTrader,
	}
}

func encryptTestMetrics(t *testing.T, cop *sim.Coprocessor, avgSize, avgGas, lastLargeTs, volatility, volume uint64) *domain.PoolMetrics {
	t.Helper()
	enc := func(v uint64, w fhe.Width) fhe.Ciphertext {
		ct, err := cop.EncryptUint64(v, w)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		return ct
	}
	return &domain.PoolMetrics{
		AverageSwapSize:        enc(avgSize, fhe.U128),
		AverageGasPrice:        enc(avgGas, fhe.U64),
		LastLargeSwapTimestamp: enc(lastLargeTs, fhe.U32),
		VolatilityScore:        enc(volatility, fhe.U64),
		TotalVolume24h:         enc(volume, fhe.U128),
	}
}

func TestAnalyzeFlagsOversizedSwap(t *testing.T) {
	cop := sim.New()
	analyzer := NewAnalyzer(cop)
	ctx := context.Background()

	// Average 1000, default sensitivity: large-swap bar at 1500.
	metrics := encryptTestMetrics(t, cop, 1000, 20, 0, 0, 100000)
	swap := encryptTestSwap(t, cop, 5000, 100, 20, 1700000000)

	assessment, err := analyzer.Analyze(ctx, swap, metrics, domain.DefaultSensitivity)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	risk, err := cop.DecryptUint64(assessment.RiskScore)
	if err != nil {
		t.Fatalf("decrypt risk: %v", err)
	}
	if risk < ForSensitivity(domain.DefaultSensitivity).ThreatScore {
		t.Errorf("risk %d below threat threshold for a 5x swap", risk)
	}

	threat, err := cop.DecryptBool(assessment.IsMevThreat)
	if err != nil {
		t.Fatalf("decrypt threat: %v", err)
	}
	if !threat {
		t.Errorf("expected 5x swap flagged as threat")
	}

	buffer, err := cop.DecryptUint64(assessment.RecommendedSlippageBufferBps)
	if err != nil {
		t.Fatalf("decrypt buffer: %v", err)
	}
	// 5000 clears both the 1500 bar and the 3000 second tier.
	if buffer != baselineBufferBps+2*bufferStepBps {
		t.Errorf("buffer: got %d, want %d", buffer, baselineBufferBps+2*bufferStepBps)
	}
}

func TestAnalyzeCalmSwapStaysAtBaseline(t *testing.T) {
	cop := sim.New()
	analyzer := NewAnalyzer(cop)
	ctx := context.Background()

	metrics := encryptTestMetrics(t, cop, 1000, 20, 0, 0, 100000)
	swap := encryptTestSwap(t, cop, 900, 100, 20, 1700000000)

	assessment, err := analyzer.Analyze(ctx, swap, metrics, domain.DefaultSensitivity)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	threat, err := cop.DecryptBool(assessment.IsMevThreat)
	if err != nil {
		t.Fatalf("decrypt threat: %v", err)
	}
	if threat {
		t.Errorf("swap below the running average flagged as threat")
	}

	buffer, err := cop.DecryptUint64(assessment.RecommendedSlippageBufferBps)
	if err != nil {
		t.Fatalf("decrypt buffer: %v", err)
	}
	if buffer != baselineBufferBps {
		t.Errorf("calm swap buffer: got %d, want baseline %d", buffer, baselineBufferBps)
	}

	delay, err := cop.DecryptUint64(assessment.RecommendedDelaySeconds)
	if err != nil {
		t.Fatalf("decrypt delay: %v", err)
	}
	if delay != 0 {
		t.Errorf("calm swap delay: got %d, want 0", delay)
	}
}

func TestAnalyzeDelayTiers(t *testing.T) {
	cop := sim.New()
	analyzer := NewAnalyzer(cop)
	ctx := context.Background()

	// Gas bar at default sensitivity: 20 * 125% = 25, second tier at 50.
	metrics := encryptTestMetrics(t, cop, 1000, 20, 0, 0, 0)

	cases := []struct {
		gas  uint64
		want uint64
	}{
		{20, 0},
		{30, delayAnomalySeconds},
		{80, delayAnomalySeconds + delayExtremeSeconds},
	}
	for _, tc := range cases {
		swap := encryptTestSwap(t, cop, 500, 100, tc.gas, 1700000000)
		assessment, err := analyzer.Analyze(ctx, swap, metrics, domain.DefaultSensitivity)
		if err != nil {
			t.Fatalf("analyze gas=%d: %v", tc.gas, err)
		}
		delay, err := cop.DecryptUint64(assessment.RecommendedDelaySeconds)
		if err != nil {
			t.Fatalf("decrypt delay: %v", err)
		}
		if delay != tc.want {
			t.Errorf("gas %d: delay %d, want %d", tc.gas, delay, tc.want)
		}
	}
}

func TestAnalyzeRiskScoreClamped(t *testing.T) {
	cop := sim.New()
	analyzer := NewAnalyzer(cop)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 1000; i++ {
		metrics := encryptTestMetrics(t, cop,
			uint64(rng.Intn(100000)), uint64(rng.Intn(1000)), 0, uint64(rng.Intn(101)), 0)
		swap := encryptTestSwap(t, cop,
			uint64(rng.Intn(1000000)), uint64(rng.Intn(500)), uint64(rng.Intn(5000)), 1700000000)
		level := uint8(rng.Intn(101))

		assessment, err := analyzer.Analyze(ctx, swap, metrics, level)
		if err != nil {
			t.Fatalf("analyze iteration %d: %v", i, err)
		}
		risk, err := cop.DecryptUint64(assessment.RiskScore)
		if err != nil {
			t.Fatalf("decrypt risk: %v", err)
		}
		if risk > riskScoreCap {
			t.Fatalf("iteration %d: risk %d above cap", i, risk)
		}
	}
}

func TestAnalyzeLossEstimate(t *testing.T) {
	cop := sim.New()
	analyzer := NewAnalyzer(cop)
	ctx := context.Background()

	// Volatility 40: lossBps = 15 + 20 = 35 at default sensitivity.
	metrics := encryptTestMetrics(t, cop, 1000, 20, 0, 40, 0)
	swap := encryptTestSwap(t, cop, 10000, 100, 20, 1700000000)

	assessment, err := analyzer.Analyze(ctx, swap, metrics, domain.DefaultSensitivity)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	loss, err := cop.DecryptUint64(assessment.EstimatedMevLoss)
	if err != nil {
		t.Fatalf("decrypt loss: %v", err)
	}
	if loss != 10000*35/10000 {
		t.Errorf("loss: got %d, want %d", loss, 10000*35/10000)
	}
}

func TestAnalyzeRejectsInvalidInputs(t *testing.T) {
	cop := sim.New()
	analyzer := NewAnalyzer(cop)
	ctx := context.Background()

	metrics := encryptTestMetrics(t, cop, 1000, 20, 0, 0, 0)
	swap := encryptTestSwap(t, cop, 1000, 100, 20, 1700000000)

	if _, err := analyzer.Analyze(ctx, swap, metrics, 101); !errors.Is(err, domain.ErrInvalidSensitivity) {
		t.Errorf("expected ErrInvalidSensitivity, got %v", err)
	}

	badSwap := encryptTestSwap(t, cop, 1000, 100, 20, 1700000000)
	badSwap.Amount.Width = fhe.U64
	if _, err := analyzer.Analyze(ctx, badSwap, metrics, 50); !errors.Is(err, domain.ErrInvalidSwap) {
		t.Errorf("expected ErrInvalidSwap, got %v", err)
	}

	// A handle the coprocessor has never seen fails the whole circuit; no
	// partial assessment comes back.
	forged := encryptTestSwap(t, cop, 1000, 100, 20, 1700000000)
	forged.Amount.Handle = "not-a-real-handle"
	assessment, err := analyzer.Analyze(ctx, forged, metrics, 50)
	if !errors.Is(err, fhe.ErrCiphertextDomain) {
		t.Errorf("expected ErrCiphertextDomain, got %v", err)
	}
	if assessment != nil {
		t.Errorf("expected no assessment on circuit failure")
	}
}

func TestAnalyzeCircuitShapeConstant(t *testing.T) {
	cop := sim.New()
	analyzer := NewAnalyzer(cop)
	ctx := context.Background()

	run := func(avg, amount, gas, slippage, vol uint64, level uint8) map[string]int {
		metrics := encryptTestMetrics(t, cop, avg, 20, 0, vol, 0)
		swap := encryptTestSwap(t, cop, amount, slippage, gas, 1700000000)
		cop.ResetOps()
		if _, err := analyzer.Analyze(ctx, swap, metrics, level); err != nil {
			t.Fatalf("analyze: %v", err)
		}
		return cop.Ops()
	}

	calm := run(1000, 900, 20, 100, 0, 50)
	hostile := run(1000, 50000, 500, 1, 100, 90)
	if !reflect.DeepEqual(calm, hostile) {
		t.Errorf("primitive call profile depends on input values:\ncalm:    %v\nhostile: %v", calm, hostile)
	}
}
