// Package main runs the MEV sentinel service: it consumes encrypted swap
// envelopes from a venue feed, scores each swap, folds it into the pool's
// rolling statistics, and publishes plaintext engine events.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"mev-sentinel/internal/fhe"
	"mev-sentinel/internal/fhe/remote"
	"mev-sentinel/internal/fhe/sim"
	"mev-sentinel/internal/notify"
	"mev-sentinel/internal/observability"
	"mev-sentinel/internal/service"
	"mev-sentinel/internal/storage"
	chstore "mev-sentinel/internal/storage/clickhouse"
	"mev-sentinel/internal/storage/memory"
	"mev-sentinel/internal/storage/migrations"
	pgstore "mev-sentinel/internal/storage/postgres"
	redisstore "mev-sentinel/internal/storage/redis"
	"mev-sentinel/internal/venue"
)

// Server holds the wired components of the service.
type Server struct {
	feedEndpoint string
	sentinel     *service.Sentinel
	obs          *observability.Metrics
	logger       *log.Logger

	mu        sync.Mutex
	started   time.Time
	analyzed  int64
	updated   int64
	feedFails int64
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	feedEndpoint := flag.String("feed-endpoint", os.Getenv("VENUE_FEED_ENDPOINT"), "Venue WebSocket feed endpoint")
	coprocessorEndpoint := flag.String("coprocessor-endpoint", os.Getenv("COPROCESSOR_ENDPOINT"), "FHE coprocessor JSON-RPC endpoint (empty: in-process simulator)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for hot-path stores (overrides postgres stores)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the event audit log (optional)")
	kafkaBrokers := flag.String("kafka-brokers", os.Getenv("KAFKA_BROKERS"), "Comma-separated Kafka brokers for event publishing (optional)")
	kafkaTopic := flag.String("kafka-topic", envOr("KAFKA_TOPIC", "mev-sentinel.events"), "Kafka topic for engine events")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/Redis")
	lazyInit := flag.Bool("lazy-init", true, "Score unknown pools against zero metrics instead of failing")
	migrate := flag.Bool("migrate", true, "Run embedded migrations on startup")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *feedEndpoint == "" {
		logger.Fatal("--feed-endpoint is required")
	}
	if !*useMemory && *postgresDSN == "" && *redisAddr == "" {
		logger.Fatal("--postgres-dsn or --redis-addr is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs := observability.NewMetrics("")

	// Coprocessor: remote service in production, simulator otherwise.
	var cop fhe.Coprocessor
	if *coprocessorEndpoint != "" {
		cop = remote.NewClient(*coprocessorEndpoint)
		logger.Printf("Using remote coprocessor at %s", *coprocessorEndpoint)
	} else {
		cop = sim.New()
		logger.Println("Using in-process simulator coprocessor; not for production")
	}
	cop = observability.NewInstrumentedCoprocessor(cop, obs)

	metricsStore, sensitivityStore, cleanupStores, err := createStores(ctx, *postgresDSN, *redisAddr, *useMemory, *migrate)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanupStores()

	notifier, cleanupNotify, err := createNotifier(ctx, *clickhouseDSN, *kafkaBrokers, *kafkaTopic, *migrate)
	if err != nil {
		logger.Fatalf("Failed to create notifier: %v", err)
	}
	defer cleanupNotify()

	sentinel := service.New(cop, metricsStore, sensitivityStore, notifier, obs, service.Config{
		LazyInit: *lazyInit,
	})

	server := &Server{
		feedEndpoint: *feedEndpoint,
		sentinel:     sentinel,
		obs:          obs,
		logger:       logger,
		started:      time.Now(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	go server.startHTTPServer(*metricsAddr)

	if err := server.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores builds the metrics and sensitivity stores.
func createStores(ctx context.Context, postgresDSN, redisAddr string, useMemory, migrate bool) (storage.PoolMetricsStore, storage.SensitivityStore, func(), error) {
	if useMemory {
		return memory.NewPoolMetricsStore(), memory.NewSensitivityStore(), func() {}, nil
	}

	if redisAddr != "" {
		client, err := redisstore.NewClient(ctx, redisstore.Config{Addr: redisAddr})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return redisstore.NewPoolMetricsStore(client), redisstore.NewSensitivityStore(client),
			func() { client.Close() }, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
		}
	}
	return pgstore.NewPoolMetricsStore(pool), pgstore.NewSensitivityStore(pool),
		func() { pool.Close() }, nil
}

// createNotifier builds the event fan-out: process log always, Kafka and the
// ClickHouse audit store when configured.
func createNotifier(ctx context.Context, clickhouseDSN, kafkaBrokers, kafkaTopic string, migrate bool) (notify.Notifier, func(), error) {
	notifiers := []notify.Notifier{notify.NewLogNotifier()}
	var cleanups []func()

	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if migrate {
			if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
				conn.Close()
				return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
			}
		}
		notifiers = append(notifiers, notify.NewStoreNotifier(chstore.NewEngineEventStore(conn)))
		cleanups = append(cleanups, func() { conn.Close() })
	}

	if kafkaBrokers != "" {
		kn, err := notify.NewKafkaNotifier(kafkaBrokers, kafkaTopic)
		if err != nil {
			for _, c := range cleanups {
				c()
			}
			return nil, nil, fmt.Errorf("connect to kafka: %w", err)
		}
		notifiers = append(notifiers, kn)
		cleanups = append(cleanups, func() { kn.Close() })
	}

	cleanup := func() {
		for _, c := range cleanups {
			c()
		}
	}
	return notify.NewMulti(notifiers...), cleanup, nil
}

// Run consumes the venue feed until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Printf("Connecting to venue feed at %s", s.feedEndpoint)

	feed, err := venue.NewWSFeed(ctx, s.feedEndpoint, nil)
	if err != nil {
		return fmt.Errorf("connect venue feed: %w", err)
	}
	defer feed.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.consume(ctx, feed)
	})
	return g.Wait()
}

// consume processes envelopes: analyze first, then fold into the pool.
func (s *Server) consume(ctx context.Context, feed venue.Feed) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-feed.Envelopes():
			if !ok {
				return fmt.Errorf("venue feed closed")
			}
			s.obs.EnvelopesReceived.Inc()
			s.handleEnvelope(ctx, env)
		}
	}
}

// handleEnvelope runs both entry points for one swap. A failed analysis does
// not block the fold: statistics should track the pool even when scoring is
// degraded.
func (s *Server) handleEnvelope(ctx context.Context, env *venue.SwapEnvelope) {
	swap := env.Swap()

	if _, err := s.sentinel.Analyze(ctx, env.PoolKey, swap); err != nil {
		s.logger.Printf("Analyze failed for pool key %q: %v", env.PoolKey, err)
		s.mu.Lock()
		s.feedFails++
		s.mu.Unlock()
	} else {
		s.mu.Lock()
		s.analyzed++
		s.mu.Unlock()
	}

	if err := s.sentinel.Update(ctx, env.PoolKey, swap); err != nil {
		s.logger.Printf("Update failed for pool key %q: %v", env.PoolKey, err)
		s.mu.Lock()
		s.feedFails++
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	s.updated++
	s.mu.Unlock()
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Analyzed int64  `json:"swaps_analyzed"`
	Updated  int64  `json:"swaps_folded"`
	Failures int64  `json:"operation_failures"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:   "running",
		Uptime:   time.Since(s.started).String(),
		Analyzed: s.analyzed,
		Updated:  s.updated,
		Failures: s.feedFails,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// envOr returns the env var value or a fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
