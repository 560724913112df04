// Package main is the entry point for the supplier ranking API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/eventsupply/internal/api"
	"github.com/onnwee/eventsupply/internal/auth"
	"github.com/onnwee/eventsupply/internal/config"
	"github.com/onnwee/eventsupply/internal/db"
	"github.com/onnwee/eventsupply/internal/health"
	"github.com/onnwee/eventsupply/internal/jobs"
	"github.com/onnwee/eventsupply/internal/middleware"
	"github.com/onnwee/eventsupply/internal/ranking"
	"github.com/onnwee/eventsupply/internal/supplier"
	"github.com/onnwee/eventsupply/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "optional YAML config file (environment variables take precedence)")
	flag.Parse()

	if *help {
		fmt.Println("EventSupply Ranking API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run(configPath string) error {
	cfg, errs := config.Load(configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			slog.Error("invalid configuration", "error", err)
		}
		return fmt.Errorf("configuration has %d error(s)", len(errs))
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	summary := make([]any, 0, 2*len(cfg.LogSummary()))
	for k, v := range cfg.LogSummary() {
		summary = append(summary, k, v)
	}
	logger.Info("configuration loaded", summary...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Enabled:        cfg.TracingEnabled,
		Environment:    cfg.Env,
		ExporterType:   cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplingRate:   cfg.TracingSamplingRate,
		InsecureMode:   !cfg.IsProduction(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.VerifySchema(ctx, conn); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	} else {
		logger.Warn("REDIS_URL not set, using in-process rate limits and uncached stats")
	}

	weights, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		logger.Warn("continuing with default ranking weights", "error", err)
	}
	if err := weights.Validate(); err != nil {
		return fmt.Errorf("invalid ranking calibration: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	middlewareMetrics := middleware.NewMetrics()
	rankingMetrics := ranking.NewMetrics()
	supplierMetrics := supplier.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	for _, register := range []func(prometheus.Registerer) error{
		middlewareMetrics.Register,
		rankingMetrics.Register,
		supplierMetrics.Register,
		jobMetrics.Register,
	} {
		if err := register(registry); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	features := supplier.NewPostgresFeatureRepository(conn)
	listings := supplier.NewPostgresListingRepository(conn)
	history := supplier.NewPostgresQuoteHistoryRepository(conn)
	var stats supplier.StatsRepository = supplier.NewPostgresStatsRepository(conn)
	if redisClient != nil {
		stats = supplier.NewCachedStats(redisClient, stats, cfg.StatsCacheTTL, logger)
	}

	tracker := supplier.NewDirtyTracker()
	service := supplier.NewService(features, listings, history, stats, supplier.ServiceConfig{
		StaleAfter: cfg.FeatureStaleAfter,
		Tracker:    tracker,
		Logger:     logger,
	})

	recomputeJob := supplier.NewRecomputeJob(supplier.RecomputeJobConfig{
		Interval:   cfg.FeatureRecomputeInterval,
		Timeout:    cfg.FeatureRecomputeTimeout,
		Logger:     logger,
		Metrics:    supplierMetrics,
		JobMetrics: jobMetrics,
	}, tracker, history, features, stats)
	if err := recomputeJob.Start(ctx); err != nil {
		return fmt.Errorf("failed to start feature recompute job: %w", err)
	}
	defer recomputeJob.Stop()

	var searchLimiter middleware.RateLimitStore
	if redisClient != nil {
		searchLimiter = middleware.NewRedisRateLimitStore(redisClient, middlewareMetrics, logger)
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		go cleanupRateLimits(ctx, memStore)
		searchLimiter = memStore
	}

	healthCfg := api.HealthHandlersConfig{DBChecker: health.NewDBChecker(conn)}
	if redisClient != nil {
		healthCfg.RedisChecker = health.NewRedisChecker(redisClient)
	}

	handler := newRouter(routerDeps{
		Logger:        logger,
		Ranking:       api.NewRankingHandlers(service, ranking.NewScorer(weights, nil), rankingMetrics),
		Health:        api.NewHealthHandlers(healthCfg),
		Admin:         auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret),
		SearchLimiter: searchLimiter,
		SearchLimit: middleware.RateLimitConfig{
			RequestsPerWindow: cfg.SearchRateLimit,
			WindowDuration:    time.Minute,
		},
		Metrics:  middlewareMetrics,
		Gatherer: registry,
		CORS:     middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins},
	})

	server := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return serve(ctx, server, ln, logger, shutdownTimeout)
}

// cleanupRateLimits drops expired in-memory windows until ctx is done.
func cleanupRateLimits(ctx context.Context, store *middleware.InMemoryRateLimitStore) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Cleanup()
		}
	}
}
