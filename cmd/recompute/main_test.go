package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/onnwee/eventsupply/internal/supplier"
)

const cachedPriorKey = "eventsupply:stats:global_acceptance_rate_30d"

func TestStatsRepository_WithoutRedis(t *testing.T) {
	base := supplier.NewInMemoryStats()

	stats, closeStats, err := statsRepository("", time.Minute, base, nil)
	if err != nil {
		t.Fatalf("statsRepository() error = %v", err)
	}
	defer closeStats()

	if stats != supplier.StatsRepository(base) {
		t.Errorf("expected the uncached repository when no redis URL is set, got %T", stats)
	}
}

func TestStatsRepository_InvalidRedisURL(t *testing.T) {
	_, _, err := statsRepository("not-a-url://", time.Minute, supplier.NewInMemoryStats(), nil)
	if err == nil {
		t.Error("expected error for invalid redis URL")
	}
}

func TestStatsRepository_InvalidatesCachedPrior(t *testing.T) {
	mr := miniredis.RunT(t)
	if err := mr.Set(cachedPriorKey, "0.9"); err != nil {
		t.Fatalf("failed to seed cache: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stats, closeStats, err := statsRepository("redis://"+mr.Addr(), time.Minute, supplier.NewInMemoryStats(), logger)
	if err != nil {
		t.Fatalf("statsRepository() error = %v", err)
	}
	defer closeStats()

	if _, ok := stats.(*supplier.CachedStats); !ok {
		t.Fatalf("expected *supplier.CachedStats, got %T", stats)
	}

	ctx := context.Background()
	if err := stats.SetGlobalAcceptanceRate30d(ctx, 0.5); err != nil {
		t.Fatalf("SetGlobalAcceptanceRate30d() error = %v", err)
	}
	if mr.Exists(cachedPriorKey) {
		t.Error("expected the cached prior to be invalidated after a recompute")
	}

	rate, err := stats.GlobalAcceptanceRate30d(ctx)
	if err != nil {
		t.Fatalf("GlobalAcceptanceRate30d() error = %v", err)
	}
	if rate != 0.5 {
		t.Errorf("expected rate 0.5, got %f", rate)
	}
}
