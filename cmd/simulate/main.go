// Package main runs a synthetic swap stream through the full engine using
// the in-process simulator coprocessor, then decrypts and prints a summary.
// Useful for eyeballing detection behavior before touching a real deployment.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"math/rand"
	"os"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/fhe"
	"mev-sentinel/internal/fhe/sim"
	"mev-sentinel/internal/notify"
	"mev-sentinel/internal/service"
	"mev-sentinel/internal/storage/memory"
)

func main() {
	poolKey := flag.String("pool-key", "sim:SOL/USDC", "Venue pool key to simulate")
	swaps := flag.Int("swaps", 500, "Number of benign swaps to stream")
	attacks := flag.Int("attacks", 10, "Number of attack-shaped swaps interleaved at the end")
	baseAmount := flag.Int64("base-amount", 1000, "Benign swap amount")
	baseGas := flag.Int64("base-gas", 20, "Benign gas price")
	sensitivity := flag.Uint("sensitivity", uint(domain.DefaultSensitivity), "Sensitivity level [0,100]")
	seed := flag.Int64("seed", 42, "PRNG seed")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)

	if *sensitivity > uint(domain.MaxSensitivity) {
		logger.Fatalf("Invalid sensitivity: %d. Must be in [0,100]", *sensitivity)
	}

	ctx := context.Background()
	rng := rand.New(rand.NewSource(*seed))

	cop := sim.New()
	notifier := notify.NewMemoryNotifier()
	sentinel := service.New(cop, memory.NewPoolMetricsStore(), memory.NewSensitivityStore(), notifier, nil, service.Config{
		LazyInit: true,
	})

	if err := sentinel.Calibrate(ctx, *poolKey, uint8(*sensitivity)); err != nil {
		logger.Fatalf("Calibrate: %v", err)
	}

	trader := base58.Encode(edwards25519.NewGeneratorPoint().Bytes())
	encryptSwap := func(amount, slippage, gas, ts uint64) *domain.EncryptedSwapData {
		enc := func(v uint64, w fhe.Width) fhe.Ciphertext {
			ct, err := cop.EncryptUint64(v, w)
			if err != nil {
				logger.Fatalf("Encrypt: %v", err)
			}
			return ct
		}
		return &domain.EncryptedSwapData{
			Amount:      enc(amount, fhe.U128),
			SlippageBps: enc(slippage, fhe.U64),
			GasPrice:    enc(gas, fhe.U64),
			Timestamp:   enc(ts, fhe.U32),
			Trader:      trader,
		}
	}

	// Benign phase: amounts and gas jitter around the baseline.
	ts := uint64(1_700_000_000)
	for i := 0; i < *swaps; i++ {
		amount := uint64(*baseAmount) + uint64(rng.Intn(int(*baseAmount/5+1)))
		gas := uint64(*baseGas) + uint64(rng.Intn(5))
		swap := encryptSwap(amount, 100, gas, ts)
		if err := sentinel.Update(ctx, *poolKey, swap); err != nil {
			logger.Fatalf("Update %d: %v", i, err)
		}
		ts++
	}
	logger.Printf("Streamed %d benign swaps", *swaps)

	// Attack phase: oversized swaps with aggressive gas and tight slippage.
	flagged := 0
	var totalLoss big.Int
	for i := 0; i < *attacks; i++ {
		swap := encryptSwap(uint64(*baseAmount)*5, 10, uint64(*baseGas)*4, ts)
		assessment, err := sentinel.Analyze(ctx, *poolKey, swap)
		if err != nil {
			logger.Fatalf("Analyze attack %d: %v", i, err)
		}
		threat, err := cop.DecryptBool(assessment.IsMevThreat)
		if err != nil {
			logger.Fatalf("Decrypt verdict: %v", err)
		}
		if threat {
			flagged++
		}
		loss, err := cop.Decrypt(assessment.EstimatedMevLoss)
		if err != nil {
			logger.Fatalf("Decrypt loss: %v", err)
		}
		totalLoss.Add(&totalLoss, loss)
		ts++
	}

	summary := struct {
		PoolKey       string `json:"pool_key"`
		Sensitivity   uint8  `json:"sensitivity"`
		BenignSwaps   int    `json:"benign_swaps"`
		AttackSwaps   int    `json:"attack_swaps"`
		Flagged       int    `json:"flagged"`
		TotalLoss     string `json:"estimated_total_loss"`
		EventsEmitted int    `json:"events_emitted"`
	}{
		PoolKey:       *poolKey,
		Sensitivity:   uint8(*sensitivity),
		BenignSwaps:   *swaps,
		AttackSwaps:   *attacks,
		Flagged:       flagged,
		TotalLoss:     totalLoss.String(),
		EventsEmitted: len(notifier.Events()),
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			logger.Fatalf("Encode summary: %v", err)
		}
		return
	}

	fmt.Printf("Pool:            %s\n", summary.PoolKey)
	fmt.Printf("Sensitivity:     %d\n", summary.Sensitivity)
	fmt.Printf("Benign swaps:    %d\n", summary.BenignSwaps)
	fmt.Printf("Attack swaps:    %d\n", summary.AttackSwaps)
	fmt.Printf("Flagged:         %d/%d\n", summary.Flagged, summary.AttackSwaps)
	fmt.Printf("Estimated loss:  %s\n", summary.TotalLoss)
	fmt.Printf("Events emitted:  %d\n", summary.EventsEmitted)
}
