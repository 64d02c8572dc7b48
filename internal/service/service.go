// Package service wires the scoring and fold circuits to storage and
// notifications. It owns the operational policy around the circuits: pool
// identity, per-pool write serialization, lazy initialization and default
// calibration.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/engine"
	"mev-sentinel/internal/fhe"
	"mev-sentinel/internal/notify"
	"mev-sentinel/internal/observability"
	"mev-sentinel/internal/poolid"
	"mev-sentinel/internal/storage"
)

// Config configures the Sentinel service.
type Config struct {
	// LazyInit controls behavior for pools without stored metrics. When true
	// (the default deployment mode), reads compute over trivially encrypted
	// zero metrics and the first Update creates the record. When false, all
	// operations on an unknown pool fail with domain.ErrUnknownPool.
	LazyInit bool
}

// Sentinel is the threat-detection engine facade. All four entry points key
// pools by the hashed venue pool key and serialize conflicting writers
// in-process.
type Sentinel struct {
	cop      fhe.Coprocessor
	analyzer *engine.Analyzer
	updater  *engine.Updater

	metricsStore     storage.PoolMetricsStore
	sensitivityStore storage.SensitivityStore
	notifier         notify.Notifier
	obs              *observability.Metrics

	lazyInit bool
	now      func() time.Time

	// poolLocks serializes Update/Calibrate per pool ID.
	poolLocks   map[string]*sync.Mutex
	poolLocksMu sync.Mutex
}

// New creates a Sentinel. notifier and obs may be nil; notifications and
// metrics are then disabled.
func New(cop fhe.Coprocessor, metricsStore storage.PoolMetricsStore, sensitivityStore storage.SensitivityStore, notifier notify.Notifier, obs *observability.Metrics, cfg Config) *Sentinel {
	return &Sentinel{
		cop:              cop,
		analyzer:         engine.NewAnalyzer(cop),
		updater:          engine.NewUpdater(cop),
		metricsStore:     metricsStore,
		sensitivityStore: sensitivityStore,
		notifier:         notifier,
		obs:              obs,
		lazyInit:         cfg.LazyInit,
		now:              time.Now,
		poolLocks:        make(map[string]*sync.Mutex),
	}
}

// lockPool returns the mutex guarding writes to one pool, creating it on
// first use. Locks are never reclaimed; the pool set is small and stable.
func (s *Sentinel) lockPool(poolID string) *sync.Mutex {
	s.poolLocksMu.Lock()
	defer s.poolLocksMu.Unlock()
	mu, ok := s.poolLocks[poolID]
	if !ok {
		mu = &sync.Mutex{}
		s.poolLocks[poolID] = mu
	}
	return mu
}

// Analyze scores one swap against the pool's current statistics. It is a pure
// read: metrics are not modified, and an unknown pool is scored against zero
// metrics when lazy initialization is enabled.
func (s *Sentinel) Analyze(ctx context.Context, poolKey string, swap *domain.EncryptedSwapData) (*domain.ThreatAssessment, error) {
	start := s.now()
	poolID := poolid.Compute(poolKey)

	metrics, _, err := s.loadMetrics(ctx, poolID)
	if err != nil {
		s.countError("analyze", err)
		return nil, err
	}
	level, err := s.loadSensitivity(ctx, poolID)
	if err != nil {
		s.countError("analyze", err)
		return nil, err
	}

	assessment, err := s.analyzer.Analyze(ctx, swap, metrics, level)
	if err != nil {
		s.countError("analyze", err)
		return nil, fmt.Errorf("analyze pool %s: %w", poolID, err)
	}

	if s.obs != nil {
		s.obs.AnalysesTotal.Inc()
		s.obs.OperationLatency.WithLabelValues("analyze").Observe(s.now().Sub(start).Seconds())
	}
	s.publish(ctx, &domain.EngineEvent{
		Type:   domain.EventAnalysisCompleted,
		PoolID: poolID,
		Trader: swap.Trader,
		At:     s.now().UnixMilli(),
	})
	return assessment, nil
}

// Update folds one swap into the pool's statistics. Writers for the same pool
// are serialized; the version chain on the store catches writers this process
// does not know about.
func (s *Sentinel) Update(ctx context.Context, poolKey string, swap *domain.EncryptedSwapData) error {
	start := s.now()
	poolID := poolid.Compute(poolKey)

	mu := s.lockPool(poolID)
	mu.Lock()
	defer mu.Unlock()

	metrics, version, err := s.loadMetrics(ctx, poolID)
	if err != nil {
		s.countError("update", err)
		return err
	}
	level, err := s.loadSensitivity(ctx, poolID)
	if err != nil {
		s.countError("update", err)
		return err
	}

	folded, err := s.updater.Fold(ctx, metrics, swap, level)
	if err != nil {
		s.countError("update", err)
		return fmt.Errorf("update pool %s: %w", poolID, err)
	}

	rec := &storage.PoolMetricsRecord{
		PoolID:    poolID,
		Metrics:   *folded,
		Version:   version + 1,
		UpdatedAt: s.now().UnixMilli(),
	}
	if err := s.metricsStore.Put(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) && s.obs != nil {
			s.obs.VersionConflicts.Inc()
		}
		s.countError("update", err)
		return fmt.Errorf("store pool %s: %w", poolID, err)
	}

	if s.obs != nil {
		s.obs.UpdatesTotal.Inc()
		s.obs.OperationLatency.WithLabelValues("update").Observe(s.now().Sub(start).Seconds())
	}
	s.publish(ctx, &domain.EngineEvent{
		Type:   domain.EventMetricsUpdated,
		PoolID: poolID,
		At:     s.now().UnixMilli(),
	})
	return nil
}

// GetMetrics returns the pool's current encrypted statistics. The handles are
// opaque; only a key holder can decrypt them.
func (s *Sentinel) GetMetrics(ctx context.Context, poolKey string) (*domain.PoolMetrics, error) {
	poolID := poolid.Compute(poolKey)

	metrics, _, err := s.loadMetrics(ctx, poolID)
	if err != nil {
		s.countError("get_metrics", err)
		return nil, err
	}
	if s.obs != nil {
		s.obs.MetricsReadsTotal.Inc()
	}
	return metrics, nil
}

// Calibrate sets the pool's plaintext sensitivity level.
func (s *Sentinel) Calibrate(ctx context.Context, poolKey string, level uint8) error {
	if err := domain.ValidateSensitivity(level); err != nil {
		s.countError("calibrate", err)
		return err
	}
	poolID := poolid.Compute(poolKey)

	mu := s.lockPool(poolID)
	mu.Lock()
	defer mu.Unlock()

	cfg := &domain.SensitivityConfig{
		Level:     level,
		UpdatedAt: s.now().UnixMilli(),
	}
	if err := s.sensitivityStore.Put(ctx, poolID, cfg); err != nil {
		s.countError("calibrate", err)
		return fmt.Errorf("calibrate pool %s: %w", poolID, err)
	}

	if s.obs != nil {
		s.obs.CalibrationsTotal.Inc()
	}
	s.publish(ctx, &domain.EngineEvent{
		Type:   domain.EventCalibrationChanged,
		PoolID: poolID,
		Level:  level,
		At:     s.now().UnixMilli(),
	})
	return nil
}

// loadMetrics returns the pool's metrics and stored version. Version 0 means
// the pool has no record yet; with lazy init the returned metrics are a fresh
// zero record, otherwise the lookup fails with ErrUnknownPool.
func (s *Sentinel) loadMetrics(ctx context.Context, poolID string) (*domain.PoolMetrics, int64, error) {
	rec, err := s.metricsStore.Get(ctx, poolID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if !s.lazyInit {
			return nil, 0, fmt.Errorf("pool %s: %w", poolID, domain.ErrUnknownPool)
		}
		zero, zerr := engine.ZeroMetrics(ctx, s.cop)
		if zerr != nil {
			return nil, 0, fmt.Errorf("init pool %s: %w", poolID, zerr)
		}
		return zero, 0, nil
	case err != nil:
		return nil, 0, fmt.Errorf("load pool %s: %w", poolID, err)
	}
	return &rec.Metrics, rec.Version, nil
}

// loadSensitivity returns the pool's calibration, falling back to the domain
// default for uncalibrated pools.
func (s *Sentinel) loadSensitivity(ctx context.Context, poolID string) (uint8, error) {
	cfg, err := s.sensitivityStore.Get(ctx, poolID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return domain.DefaultSensitivity, nil
	case err != nil:
		return 0, fmt.Errorf("load sensitivity %s: %w", poolID, err)
	}
	return cfg.Level, nil
}

// publish delivers an event best-effort. A failed notification never fails
// the operation that produced it.
func (s *Sentinel) publish(ctx context.Context, event *domain.EngineEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		log.Printf("[service] publish %s for pool %s: %v", event.Type, event.PoolID, err)
		if s.obs != nil {
			s.obs.NotifyErrors.WithLabelValues(string(event.Type)).Inc()
		}
		return
	}
	if s.obs != nil {
		s.obs.EventsPublished.WithLabelValues(string(event.Type)).Inc()
	}
}

// countError buckets an operation error for metrics.
func (s *Sentinel) countError(operation string, err error) {
	if s.obs == nil {
		return
	}
	kind := "internal"
	switch {
	case errors.Is(err, domain.ErrUnknownPool):
		kind = "unknown_pool"
	case errors.Is(err, domain.ErrInvalidSensitivity):
		kind = "invalid_sensitivity"
	case errors.Is(err, domain.ErrInvalidSwap), errors.Is(err, domain.ErrInvalidMetrics):
		kind = "invalid_input"
	case errors.Is(err, fhe.ErrCiphertextDomain):
		kind = "ciphertext_domain"
	case errors.Is(err, fhe.ErrAdapterFailure):
		kind = "adapter_failure"
	case errors.Is(err, storage.ErrVersionConflict):
		kind = "version_conflict"
	case errors.Is(err, storage.ErrNotFound):
		kind = "not_found"
	}
	s.obs.OperationErrors.WithLabelValues(operation, kind).Inc()
}
