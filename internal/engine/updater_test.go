package engine

import (
	"context"
	"reflect"
	"testing"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/fhe/sim"
)

func TestFoldConvergesToConstantStream(t *testing.T) {
	cop := sim.New()
	updater := NewUpdater(cop)
	ctx := context.Background()

	metrics, err := ZeroMetrics(ctx, cop)
	if err != nil {
		t.Fatalf("zero metrics: %v", err)
	}

	const sample = uint64(1600)
	prev := uint64(0)
	for i := 0; i < 200; i++ {
		swap := encryptTestSwap(t, cop, sample, 100, 20, uint64(1700000000+i))
		metrics, err = updater.Fold(ctx, metrics, swap, domain.DefaultSensitivity)
		if err != nil {
			t.Fatalf("fold %d: %v", i, err)
		}

		avg, err := cop.Decrypt(metrics.AverageSwapSize)
		if err != nil {
			t.Fatalf("decrypt avg: %v", err)
		}
		if !avg.IsUint64() {
			t.Fatalf("average overflow: %s", avg)
		}
		cur := avg.Uint64()

		// Approaching a constant from below, the EMA never decreases and
		// never overshoots.
		if cur < prev {
			t.Fatalf("fold %d: average moved backwards, %d -> %d", i, prev, cur)
		}
		if cur > sample {
			t.Fatalf("fold %d: average %d overshot sample %d", i, cur, sample)
		}
		prev = cur
	}

	// Integer EMA flooring leaves a small gap below the sample; 1% is the
	// accepted tolerance.
	if prev < sample-sample/100 {
		t.Errorf("average %d not within 1%% of %d after 200 folds", prev, sample)
	}
}

func TestFoldAccumulatesVolumeExactly(t *testing.T) {
	cop := sim.New()
	updater := NewUpdater(cop)
	ctx := context.Background()

	metrics, err := ZeroMetrics(ctx, cop)
	if err != nil {
		t.Fatalf("zero metrics: %v", err)
	}

	var want uint64
	amounts := []uint64{100, 2500, 1, 999999, 42}
	for i, amount := range amounts {
		swap := encryptTestSwap(t, cop, amount, 100, 20, uint64(1700000000+i))
		metrics, err = updater.Fold(ctx, metrics, swap, domain.DefaultSensitivity)
		if err != nil {
			t.Fatalf("fold %d: %v", i, err)
		}
		want += amount
	}

	volume, err := cop.Decrypt(metrics.TotalVolume24h)
	if err != nil {
		t.Fatalf("decrypt volume: %v", err)
	}
	if !volume.IsUint64() || volume.Uint64() != want {
		t.Errorf("volume: got %s, want %d", volume, want)
	}
}

func TestFoldLargeSwapTimestamp(t *testing.T) {
	cop := sim.New()
	updater := NewUpdater(cop)
	ctx := context.Background()

	// Average 1000, default sensitivity: large-swap bar at 1500.
	metrics := encryptTestMetrics(t, cop, 1000, 20, 500, 0, 0)

	// A calm swap must not move the timestamp.
	calm := encryptTestSwap(t, cop, 1200, 100, 20, 1700000001)
	folded, err := updater.Fold(ctx, metrics, calm, domain.DefaultSensitivity)
	if err != nil {
		t.Fatalf("fold calm: %v", err)
	}
	ts, err := cop.DecryptUint64(folded.LastLargeSwapTimestamp)
	if err != nil {
		t.Fatalf("decrypt ts: %v", err)
	}
	if ts != 500 {
		t.Errorf("calm swap moved timestamp: got %d, want 500", ts)
	}

	// A large swap replaces it with the swap's own timestamp.
	large := encryptTestSwap(t, cop, 5000, 100, 20, 1700000002)
	folded, err = updater.Fold(ctx, metrics, large, domain.DefaultSensitivity)
	if err != nil {
		t.Fatalf("fold large: %v", err)
	}
	ts, err = cop.DecryptUint64(folded.LastLargeSwapTimestamp)
	if err != nil {
		t.Fatalf("decrypt ts: %v", err)
	}
	if ts != 1700000002 {
		t.Errorf("large swap timestamp: got %d, want 1700000002", ts)
	}
}

func TestFoldVolatilityStaysInRange(t *testing.T) {
	cop := sim.New()
	updater := NewUpdater(cop)
	ctx := context.Background()

	metrics, err := ZeroMetrics(ctx, cop)
	if err != nil {
		t.Fatalf("zero metrics: %v", err)
	}

	// Alternate tiny and huge swaps to keep the deviation tiers tripping.
	amounts := []uint64{10, 100000, 10, 100000, 10, 100000}
	for i := 0; i < 50; i++ {
		swap := encryptTestSwap(t, cop, amounts[i%len(amounts)], 100, 20, uint64(1700000000+i))
		metrics, err = updater.Fold(ctx, metrics, swap, domain.DefaultSensitivity)
		if err != nil {
			t.Fatalf("fold %d: %v", i, err)
		}
		vol, err := cop.DecryptUint64(metrics.VolatilityScore)
		if err != nil {
			t.Fatalf("decrypt volatility: %v", err)
		}
		if vol > 100 {
			t.Fatalf("fold %d: volatility %d out of range", i, vol)
		}
	}
}

func TestFoldDoesNotMutateInput(t *testing.T) {
	cop := sim.New()
	updater := NewUpdater(cop)
	ctx := context.Background()

	metrics := encryptTestMetrics(t, cop, 1000, 20, 0, 10, 5000)
	before := *metrics

	swap := encryptTestSwap(t, cop, 3000, 100, 20, 1700000000)
	if _, err := updater.Fold(ctx, metrics, swap, domain.DefaultSensitivity); err != nil {
		t.Fatalf("fold: %v", err)
	}

	if *metrics != before {
		t.Errorf("fold mutated its input metrics")
	}
}

func TestFoldCircuitShapeConstant(t *testing.T) {
	cop := sim.New()
	updater := NewUpdater(cop)
	ctx := context.Background()

	run := func(avg, amount uint64) map[string]int {
		metrics := encryptTestMetrics(t, cop, avg, 20, 0, 0, 0)
		swap := encryptTestSwap(t, cop, amount, 100, 20, 1700000000)
		cop.ResetOps()
		if _, err := updater.Fold(ctx, metrics, swap, domain.DefaultSensitivity); err != nil {
			t.Fatalf("fold: %v", err)
		}
		return cop.Ops()
	}

	small := run(1000, 900)
	huge := run(1000, 900000)
	if !reflect.DeepEqual(small, huge) {
		t.Errorf("primitive call profile depends on input values:\nsmall: %v\nhuge:  %v", small, huge)
	}
}
