package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"llm_share/internal/models"
)

// UsageRepository appends and aggregates resource usage logs. The table
// is append-only; records are never updated after insertion.
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository.
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

const insertUsageLogQuery = `
	INSERT INTO resource_usage_logs
		(id, user_id, instance_id, service_type, details, raw_text, byte_length, created_at)
	VALUES
		(:id, :user_id, :instance_id, :service_type, :details, :raw_text, :byte_length, :created_at)
`

// Insert appends one usage log record.
func (r *UsageRepository) Insert(ctx context.Context, log *models.ResourceUsageLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	if _, err := r.db.conn.NamedExecContext(ctx, insertUsageLogQuery, log); err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}
	return nil
}

// InsertBatch appends several records in one transaction. Used by the
// usage queue worker.
func (r *UsageRepository) InsertBatch(ctx context.Context, logs []*models.ResourceUsageLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, log := range logs {
		if log.ID == uuid.Nil {
			log.ID = uuid.New()
		}
		if log.CreatedAt.IsZero() {
			log.CreatedAt = time.Now()
		}
		if _, err := tx.NamedExecContext(ctx, insertUsageLogQuery, log); err != nil {
			return fmt.Errorf("failed to insert usage log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CountByInstance returns the number of log rows for one instance.
func (r *UsageRepository) CountByInstance(ctx context.Context, instanceID uuid.UUID) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM resource_usage_logs WHERE instance_id = $1`
	if err := r.db.conn.GetContext(ctx, &count, query, instanceID); err != nil {
		return 0, fmt.Errorf("failed to count usage logs: %w", err)
	}
	return count, nil
}

// ModelUsageSummary is one aggregate row for display.
type ModelUsageSummary struct {
	Model            string  `db:"model" json:"model"`
	Requests         int64   `db:"requests" json:"requests"`
	PromptTokens     int64   `db:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int64   `db:"completion_tokens" json:"completion_tokens"`
	TotalTokens      int64   `db:"total_tokens" json:"total_tokens"`
	Cost             float64 `db:"cost" json:"cost"`
}

// SummarizeByModel aggregates chat usage per model over a time window.
// Rows without reported usage count toward requests only.
func (r *UsageRepository) SummarizeByModel(ctx context.Context, instanceID uuid.UUID, from, to time.Time) ([]ModelUsageSummary, error) {
	query := `
		SELECT
			COALESCE(details->>'model', '') AS model,
			COUNT(*) AS requests,
			COALESCE(SUM((details->'usage'->>'prompt_tokens')::bigint), 0) AS prompt_tokens,
			COALESCE(SUM((details->'usage'->>'completion_tokens')::bigint), 0) AS completion_tokens,
			COALESCE(SUM((details->'usage'->>'total_tokens')::bigint), 0) AS total_tokens,
			COALESCE(SUM((details->>'cost')::double precision), 0) AS cost
		FROM resource_usage_logs
		WHERE instance_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY 1
		ORDER BY cost DESC
	`

	var rows []ModelUsageSummary
	if err := r.db.conn.SelectContext(ctx, &rows, query, instanceID, from, to); err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	return rows, nil
}

// DailyUsageTotal is one per-day rollup row for display.
type DailyUsageTotal struct {
	Day         time.Time `db:"day" json:"day"`
	Requests    int64     `db:"requests" json:"requests"`
	TotalTokens int64     `db:"total_tokens" json:"total_tokens"`
	Cost        float64   `db:"cost" json:"cost"`
}

// DailyTotals aggregates chat usage per calendar day over a time window.
func (r *UsageRepository) DailyTotals(ctx context.Context, instanceID uuid.UUID, from, to time.Time) ([]DailyUsageTotal, error) {
	query := `
		SELECT
			date_trunc('day', created_at) AS day,
			COUNT(*) AS requests,
			COALESCE(SUM((details->'usage'->>'total_tokens')::bigint), 0) AS total_tokens,
			COALESCE(SUM((details->>'cost')::double precision), 0) AS cost
		FROM resource_usage_logs
		WHERE instance_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY 1
		ORDER BY 1
	`

	var rows []DailyUsageTotal
	if err := r.db.conn.SelectContext(ctx, &rows, query, instanceID, from, to); err != nil {
		return nil, fmt.Errorf("failed to aggregate daily usage: %w", err)
	}
	return rows, nil
}
