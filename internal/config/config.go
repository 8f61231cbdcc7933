package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds configuration for the proxy.
type Config struct {
	HTTPPort string
	Database DatabaseConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Upstream UpstreamConfig
	Usage    UsageQueueConfig
	Archive  ArchiveConfig
	Stats    StatsConfig
	Admin    AdminConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// CacheConfig holds cache settings
type CacheConfig struct {
	AbilityCacheSize  int
	AbilityCacheTTL   time.Duration
	InstanceCacheSize int
	InstanceCacheTTL  time.Duration
}

// RedisConfig holds Redis connection settings. An empty address means
// Redis-backed features fall back to their in-memory variants.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// UpstreamConfig holds settings for the outbound provider client
type UpstreamConfig struct {
	RequestTimeout time.Duration
}

// UsageQueueConfig holds settings for the usage-log persistence queue
type UsageQueueConfig struct {
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// ArchiveConfig holds configuration for the S3-based usage archive sink
type ArchiveConfig struct {
	Enabled       bool          // Whether to archive usage logs to S3
	BufferSize    int           // In-memory queue size
	FlushSize     int           // Flush to S3 after this many records
	FlushInterval time.Duration // Flush to S3 after this duration
	S3Bucket      string        // S3 bucket name
	S3Region      string        // AWS region
	S3Prefix      string        // Prefix for S3 keys (e.g., "usage/")
	NodeName      string        // Node identifier for multi-node deployments
}

// StatsConfig holds settings for the aggregate reporting cache
type StatsConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

// AdminConfig holds the admin report surface credentials
type AdminConfig struct {
	PasswordHash string // bcrypt hash of the admin password
	JWTSecret    []byte
	TokenTTL     time.Duration
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from the environment, after merging in a
// local .env file when one exists.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPPort: getEnvString("HTTP_PORT", "8080"),
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Cache: CacheConfig{
			AbilityCacheSize:  getEnvInt("CACHE_ABILITY_SIZE", 1000),
			AbilityCacheTTL:   getEnvDuration("CACHE_ABILITY_TTL", 5*time.Minute),
			InstanceCacheSize: getEnvInt("CACHE_INSTANCE_SIZE", 100),
			InstanceCacheTTL:  getEnvDuration("CACHE_INSTANCE_TTL", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:  getEnvString("REDIS_ADDRESS", ""),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Upstream: UpstreamConfig{
			RequestTimeout: getEnvDuration("UPSTREAM_REQUEST_TIMEOUT", 300*time.Second),
		},
		Usage: UsageQueueConfig{
			BatchSize:    getEnvInt("USAGE_QUEUE_BATCH_SIZE", 100),
			BatchTimeout: getEnvDuration("USAGE_QUEUE_BATCH_TIMEOUT", 5*time.Second),
			MaxRetries:   getEnvInt("USAGE_QUEUE_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("USAGE_QUEUE_RETRY_BACKOFF", 1*time.Second),
		},
		Archive: ArchiveConfig{
			Enabled:       getEnvString("ARCHIVE_ENABLED", "false") == "true",
			BufferSize:    getEnvInt("ARCHIVE_BUFFER_SIZE", 10000),
			FlushSize:     getEnvInt("ARCHIVE_FLUSH_SIZE", 1000),
			FlushInterval: getEnvDuration("ARCHIVE_FLUSH_INTERVAL", 5*time.Minute),
			S3Bucket:      getEnvString("ARCHIVE_S3_BUCKET", ""),
			S3Region:      getEnvString("ARCHIVE_S3_REGION", "us-east-1"),
			S3Prefix:      getEnvString("ARCHIVE_S3_PREFIX", "usage/"),
			NodeName:      getEnvString("NODE_NAME", "proxy-0"),
		},
		Stats: StatsConfig{
			CacheSize: getEnvInt("STATS_CACHE_SIZE", 256),
			CacheTTL:  getEnvDuration("STATS_CACHE_TTL", 10*time.Minute),
		},
		Admin: AdminConfig{
			PasswordHash: getEnvString("ADMIN_PASSWORD_HASH", ""),
			JWTSecret:    []byte(getEnvString("ADMIN_JWT_SECRET", "")),
			TokenTTL:     getEnvDuration("ADMIN_TOKEN_TTL", 12*time.Hour),
		},
	}

	if cfg.Archive.Enabled && cfg.Archive.S3Bucket == "" {
		return nil, fmt.Errorf("ARCHIVE_S3_BUCKET is required when the archive is enabled")
	}

	return cfg, nil
}
