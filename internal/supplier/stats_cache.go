package supplier

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStatsCacheTTL is how long the cached marketplace prior stays valid.
const DefaultStatsCacheTTL = 5 * time.Minute

// statsCacheKey is the Redis key holding the cached prior.
const statsCacheKey = "eventsupply:stats:" + globalAcceptanceRateKey

// CachedStats is a Redis read-through cache in front of a StatsRepository.
// Redis failures are logged and fall through to the repository.
type CachedStats struct {
	client *redis.Client
	repo   StatsRepository
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStats creates a new CachedStats. A zero ttl uses DefaultStatsCacheTTL.
func NewCachedStats(client *redis.Client, repo StatsRepository, ttl time.Duration, logger *slog.Logger) *CachedStats {
	if ttl <= 0 {
		ttl = DefaultStatsCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStats{
		client: client,
		repo:   repo,
		ttl:    ttl,
		logger: logger,
	}
}

// GlobalAcceptanceRate30d returns the cached prior, loading it from the
// repository on a miss.
func (c *CachedStats) GlobalAcceptanceRate30d(ctx context.Context) (float64, error) {
	rate, err := c.client.Get(ctx, statsCacheKey).Float64()
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.logger.Warn("stats cache read failed, falling back to repository",
			"key", statsCacheKey,
			"error", err)
	}

	rate, err = c.repo.GlobalAcceptanceRate30d(ctx)
	if err != nil {
		return 0, err
	}

	if err := c.client.Set(ctx, statsCacheKey, rate, c.ttl).Err(); err != nil {
		c.logger.Warn("stats cache write failed",
			"key", statsCacheKey,
			"error", err)
	}
	return rate, nil
}

// SetGlobalAcceptanceRate30d writes through to the repository and drops the cached value.
func (c *CachedStats) SetGlobalAcceptanceRate30d(ctx context.Context, rate float64) error {
	if err := c.repo.SetGlobalAcceptanceRate30d(ctx, rate); err != nil {
		return err
	}
	if err := c.client.Del(ctx, statsCacheKey).Err(); err != nil {
		c.logger.Warn("stats cache invalidation failed",
			"key", statsCacheKey,
			"error", err)
	}
	return nil
}
