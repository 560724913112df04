// Package db opens and verifies the Postgres connection used for supplier
// listings, quote history and precomputed rank features.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// DriverName is the database/sql driver registered by lib/pq.
const DriverName = "postgres"

// RequiredTables lists the tables the ranking service reads or writes.
var RequiredTables = []string{
	"supplier_listings",
	"supplier_rank_features",
	"enquiries",
	"quotes",
	"marketplace_stats",
}

// SchemaQuery returns the required tables that exist in the current schema.
const SchemaQuery = `SELECT table_name FROM information_schema.tables
WHERE table_schema = current_schema() AND table_name = ANY($1)`

// PoolConfig holds connection pool limits.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// PingTimeout bounds the initial connectivity check.
	PingTimeout time.Duration
}

// DefaultPoolConfig returns pool limits sized for a single API instance.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// Open connects to Postgres, applies the pool limits and pings the server.
func Open(ctx context.Context, databaseURL string, cfg PoolConfig) (*sql.DB, error) {
	conn, err := sql.Open(DriverName, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	Configure(conn, cfg)

	pingCtx := ctx
	if cfg.PingTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.PingTimeout)
		defer cancel()
	}
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// Configure applies pool limits. Zero values leave the driver defaults.
func Configure(conn *sql.DB, cfg PoolConfig) {
	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// VerifySchema returns an error naming every required table that is missing.
func VerifySchema(ctx context.Context, conn *sql.DB) error {
	rows, err := conn.QueryContext(ctx, SchemaQuery, pq.Array(RequiredTables))
	if err != nil {
		return fmt.Errorf("failed to query schema: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(RequiredTables))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	var missing []string
	for _, table := range RequiredTables {
		if !found[table] {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tables: %s (run migrations)", strings.Join(missing, ", "))
	}
	return nil
}
