package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"llm_share/internal/storage"
	"llm_share/internal/utils"
)

// UsageReader is the aggregate query surface the service consumes.
type UsageReader interface {
	SummarizeByModel(ctx context.Context, instanceID uuid.UUID, from, to time.Time) ([]storage.ModelUsageSummary, error)
	DailyTotals(ctx context.Context, instanceID uuid.UUID, from, to time.Time) ([]storage.DailyUsageTotal, error)
}

// Summary is the per-model rollup of one instance over a window.
type Summary struct {
	InstanceID    uuid.UUID                   `json:"instance_id"`
	From          time.Time                   `json:"from"`
	To            time.Time                   `json:"to"`
	Models        []storage.ModelUsageSummary `json:"models"`
	TotalRequests int64                       `json:"total_requests"`
	TotalTokens   int64                       `json:"total_tokens"`
	TotalCost     float64                     `json:"total_cost"`
}

// DailyReport is the per-day rollup of one instance.
type DailyReport struct {
	InstanceID uuid.UUID                 `json:"instance_id"`
	From       time.Time                 `json:"from"`
	To         time.Time                 `json:"to"`
	Days       []storage.DailyUsageTotal `json:"days"`
}

// Service computes display aggregates over the usage log. Results are
// memoized in an injected bounded cache; an entry is reused only while
// the query window's end timestamp is unchanged.
type Service struct {
	usage  UsageReader
	cache  *storage.LRUCache
	logger *utils.Logger
}

// NewService creates a stats service backed by the given reader and
// memo cache. The cache is required; the service never creates ambient
// global state of its own.
func NewService(usage UsageReader, cache *storage.LRUCache) *Service {
	return &Service{
		usage:  usage,
		cache:  cache,
		logger: utils.NewLogger("stats"),
	}
}

type summaryEntry struct {
	windowEnd time.Time
	summary   *Summary
}

type dailyEntry struct {
	windowEnd time.Time
	report    *DailyReport
}

// Summary aggregates per-model usage of one instance over [from, to).
func (s *Service) Summary(ctx context.Context, instanceID uuid.UUID, from, to time.Time) (*Summary, error) {
	key := fmt.Sprintf("summary:%s:%d", instanceID, from.Unix())
	if v, ok := s.cache.Get(key); ok {
		if entry, ok := v.(*summaryEntry); ok && entry.windowEnd.Equal(to) {
			return entry.summary, nil
		}
	}

	rows, err := s.usage.SummarizeByModel(ctx, instanceID, from, to)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		InstanceID: instanceID,
		From:       from,
		To:         to,
		Models:     rows,
	}
	for _, row := range rows {
		summary.TotalRequests += row.Requests
		summary.TotalTokens += row.TotalTokens
		summary.TotalCost += row.Cost
	}

	s.cache.Set(key, &summaryEntry{windowEnd: to, summary: summary})
	return summary, nil
}

// Daily aggregates per-day usage of one instance over the last `days`
// calendar days. The window ends at the next UTC midnight, so cached
// reports stay valid until the day rolls over.
func (s *Service) Daily(ctx context.Context, instanceID uuid.UUID, days int) (*DailyReport, error) {
	if days <= 0 {
		days = 30
	}

	to := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	from := to.AddDate(0, 0, -days)

	key := fmt.Sprintf("daily:%s:%d", instanceID, days)
	if v, ok := s.cache.Get(key); ok {
		if entry, ok := v.(*dailyEntry); ok && entry.windowEnd.Equal(to) {
			return entry.report, nil
		}
	}

	rows, err := s.usage.DailyTotals(ctx, instanceID, from, to)
	if err != nil {
		return nil, err
	}

	report := &DailyReport{
		InstanceID: instanceID,
		From:       from,
		To:         to,
		Days:       rows,
	}

	s.cache.Set(key, &dailyEntry{windowEnd: to, report: report})
	return report, nil
}
