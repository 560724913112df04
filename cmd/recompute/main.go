// Package main is a one-shot backfill that rebuilds precomputed rank
// features for every approved supplier and refreshes the marketplace prior.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/eventsupply/internal/config"
	"github.com/onnwee/eventsupply/internal/db"
	"github.com/onnwee/eventsupply/internal/middleware"
	"github.com/onnwee/eventsupply/internal/supplier"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "optional YAML config file (environment variables take precedence)")
	flag.Parse()

	if *help {
		fmt.Println("EventSupply Feature Recompute")
		fmt.Println()
		fmt.Println("Rebuilds supplier_rank_features for all approved suppliers.")
		fmt.Println()
		fmt.Println("Usage: recompute [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("recompute failed", "error", err)
		os.Exit(1)
	}
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer conn.Close()

	listings := supplier.NewPostgresListingRepository(conn)
	approved, err := listings.ListApproved(ctx)
	if err != nil {
		return fmt.Errorf("failed to list approved suppliers: %w", err)
	}

	tracker := supplier.NewDirtyTracker()
	for _, l := range approved {
		tracker.MarkDirty(l.SupplierID)
	}

	stats, closeStats, err := statsRepository(cfg.RedisURL, cfg.StatsCacheTTL, supplier.NewPostgresStatsRepository(conn), logger)
	if err != nil {
		return err
	}
	defer closeStats()

	job := supplier.NewRecomputeJob(supplier.RecomputeJobConfig{
		Timeout: cfg.FeatureRecomputeTimeout,
		Logger:  logger,
	}, tracker,
		supplier.NewPostgresQuoteHistoryRepository(conn),
		supplier.NewPostgresFeatureRepository(conn),
		stats,
	)
	job.RecomputeNow(ctx)

	if remaining := tracker.DirtyCount(); remaining > 0 {
		return fmt.Errorf("%d of %d suppliers failed to recompute", remaining, len(approved))
	}
	logger.Info("feature backfill complete", "suppliers", len(approved))
	return nil
}

// statsRepository wraps repo in the Redis stats cache when redisURL is set,
// so a refreshed prior invalidates the value the API instances are serving.
// The returned close func releases the Redis client.
func statsRepository(redisURL string, ttl time.Duration, repo supplier.StatsRepository, logger *slog.Logger) (supplier.StatsRepository, func() error, error) {
	if redisURL == "" {
		return repo, func() error { return nil }, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	return supplier.NewCachedStats(client, repo, ttl, logger), client.Close, nil
}
