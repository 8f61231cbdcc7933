package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection together with the read-path caches the
// proxy relies on.
type DB struct {
	conn *sqlx.DB

	abilityCache  *LRUCache
	instanceCache *LRUCache
}

// DBConfig holds database configuration.
type DBConfig struct {
	// DSN is the Postgres connection string.
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	AbilityCacheSize  int
	AbilityCacheTTL   time.Duration
	InstanceCacheSize int
	InstanceCacheTTL  time.Duration
}

// DefaultDBConfig returns default database configuration.
func DefaultDBConfig() DBConfig {
	return DBConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,

		AbilityCacheSize:  1000,
		AbilityCacheTTL:   5 * time.Minute,
		InstanceCacheSize: 100,
		InstanceCacheTTL:  1 * time.Minute,
	}
}

// NewDB opens a pooled connection and initializes the caches.
func NewDB(cfg DBConfig) (*DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &DB{
		conn:          conn,
		abilityCache:  NewLRUCache(cfg.AbilityCacheSize, cfg.AbilityCacheTTL),
		instanceCache: NewLRUCache(cfg.InstanceCacheSize, cfg.InstanceCacheTTL),
	}, nil
}

// Close closes the connection and clears the caches.
func (db *DB) Close() error {
	db.abilityCache.Clear()
	db.instanceCache.Clear()
	return db.conn.Close()
}

// Ping checks if the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Health verifies connectivity with a trivial query.
func (db *DB) Health(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var result int
	if err := db.conn.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}
	return nil
}

// CleanupExpiredCacheEntries removes expired entries from all caches.
// Call periodically.
func (db *DB) CleanupExpiredCacheEntries() (abilityRemoved, instanceRemoved int) {
	abilityRemoved = db.abilityCache.CleanupExpired()
	instanceRemoved = db.instanceCache.CleanupExpired()
	return
}
