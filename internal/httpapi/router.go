package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"llm_share/internal/config"
	"llm_share/internal/logging"
	"llm_share/internal/middleware"
	"llm_share/internal/queue"
	"llm_share/internal/stats"
	"llm_share/internal/storage"
	"llm_share/internal/upstream"
	"llm_share/internal/utils"
)

// NewRouter wires the full service graph from configuration and returns
// the HTTP mux together with the dependency container, which owns the
// lifecycle of everything it wired.
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	dbCfg := storage.DefaultDBConfig()
	dbCfg.DSN = cfg.Database.URL
	dbCfg.MaxOpenConns = cfg.Database.MaxOpenConns
	dbCfg.MaxIdleConns = cfg.Database.MaxIdleConns
	dbCfg.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	dbCfg.ConnMaxIdleTime = cfg.Database.ConnMaxIdleTime
	dbCfg.AbilityCacheSize = cfg.Cache.AbilityCacheSize
	dbCfg.AbilityCacheTTL = cfg.Cache.AbilityCacheTTL
	dbCfg.InstanceCacheSize = cfg.Cache.InstanceCacheSize
	dbCfg.InstanceCacheTTL = cfg.Cache.InstanceCacheTTL

	db, err := storage.NewDB(dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: %w", err)
	}

	abilities := storage.NewAbilityRepository(db)
	instances := storage.NewInstanceRepository(db)
	usageRepo := storage.NewUsageRepository(db)

	queueCfg := queue.DefaultConfig("usage_logs")
	queueCfg.BatchSize = cfg.Usage.BatchSize
	queueCfg.BatchTimeout = cfg.Usage.BatchTimeout
	queueCfg.MaxRetries = cfg.Usage.MaxRetries
	queueCfg.RetryBackoff = cfg.Usage.RetryBackoff
	queueCfg.UseRedis = cfg.Redis.Address != ""
	queueCfg.RedisAddr = cfg.Redis.Address
	queueCfg.RedisPassword = cfg.Redis.Password
	queueCfg.RedisDB = cfg.Redis.DB

	var (
		usageQueue queue.Queue
		usageDLQ   queue.DeadLetterQueue
	)
	if queueCfg.UseRedis {
		usageQueue, err = queue.NewRedisQueue(queueCfg)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("usage queue: %w", err)
		}
		usageDLQ, err = queue.NewRedisDeadLetterQueue(queueCfg)
		if err != nil {
			usageQueue.Close()
			db.Close()
			return nil, nil, fmt.Errorf("usage dead letter queue: %w", err)
		}
	} else {
		usageQueue = queue.NewMemoryQueue(queueCfg)
		usageDLQ = queue.NewMemoryDeadLetterQueue()
	}

	worker := storage.NewUsageQueueWorker(usageQueue, usageDLQ, usageRepo, queueCfg)
	worker.Start(context.Background())

	archive := logging.Sink(logging.NewNoopSink())
	if cfg.Archive.Enabled {
		writer, err := logging.NewS3Writer(
			context.Background(),
			cfg.Archive.S3Bucket,
			cfg.Archive.S3Region,
			cfg.Archive.S3Prefix,
			cfg.Archive.NodeName,
		)
		if err != nil {
			_ = worker.Stop()
			usageQueue.Close()
			usageDLQ.Close()
			db.Close()
			return nil, nil, fmt.Errorf("archive sink: %w", err)
		}
		archive = logging.NewS3Sink(writer, logging.S3SinkConfig{
			BufferSize:    cfg.Archive.BufferSize,
			FlushSize:     cfg.Archive.FlushSize,
			FlushInterval: cfg.Archive.FlushInterval,
		})
	}

	deps := &Dependencies{
		Abilities:   abilities,
		Instances:   instances,
		Upstream:    upstream.NewClient(cfg.Upstream.RequestTimeout),
		Usage:       NewQueueUsageWriter(worker, archive),
		Stats:       stats.NewService(usageRepo, storage.NewLRUCache(cfg.Stats.CacheSize, cfg.Stats.CacheTTL)),
		Admin:       cfg.Admin,
		UsageWorker: worker,

		db:         db,
		usageQueue: usageQueue,
		usageDLQ:   usageDLQ,
		archive:    archive,
		logger:     utils.NewLogger("relay"),
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)
	return mux, deps, nil
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies, cfg *config.Config) {
	// Public OpenAI-compatible proxy endpoints, scoped per instance.
	mux.HandleFunc("POST /api/{instance}/v1/chat/completions", deps.handleChatCompletions)
	mux.HandleFunc("GET /api/{instance}/v1/models", deps.handleListModels)
	mux.HandleFunc("OPTIONS /api/{instance}/v1/chat/completions", handlePreflight)
	mux.HandleFunc("OPTIONS /api/{instance}/v1/models", handlePreflight)

	// Admin API
	adminJWT := middleware.AdminJWT(cfg.Admin.JWTSecret)
	mux.HandleFunc("POST /admin/auth/login", deps.handleAdminLogin)
	mux.Handle("GET /admin/stats/summary", adminJWT(http.HandlerFunc(deps.handleStatsSummary)))
	mux.Handle("GET /admin/stats/daily", adminJWT(http.HandlerFunc(deps.handleStatsDaily)))

	mux.HandleFunc("GET /healthz", deps.handleHealth)
}

// Shutdown stops the background machinery in dependency order: the
// usage worker drains its queue before the queue and the database close
// beneath it, and the archive sink flushes its final batch.
func (d *Dependencies) Shutdown(ctx context.Context) error {
	var firstErr error

	if d.UsageWorker != nil {
		if err := d.UsageWorker.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.archive != nil {
		if err := d.archive.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.usageQueue != nil {
		if err := d.usageQueue.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.usageDLQ != nil {
		if err := d.usageDLQ.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
