package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_share/internal/storage"
)

type mockUsageReader struct {
	summarizeCalls int
	dailyCalls     int
	summaries      []storage.ModelUsageSummary
	dailies        []storage.DailyUsageTotal
}

func (m *mockUsageReader) SummarizeByModel(ctx context.Context, instanceID uuid.UUID, from, to time.Time) ([]storage.ModelUsageSummary, error) {
	m.summarizeCalls++
	return m.summaries, nil
}

func (m *mockUsageReader) DailyTotals(ctx context.Context, instanceID uuid.UUID, from, to time.Time) ([]storage.DailyUsageTotal, error) {
	m.dailyCalls++
	return m.dailies, nil
}

func TestSummary_Totals(t *testing.T) {
	reader := &mockUsageReader{
		summaries: []storage.ModelUsageSummary{
			{Model: "gpt-4o", Requests: 10, PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500, Cost: 0.125},
			{Model: "gpt-4o-mini", Requests: 40, PromptTokens: 2000, CompletionTokens: 800, TotalTokens: 2800, Cost: 0.02},
		},
	}
	svc := NewService(reader, storage.NewLRUCache(16, time.Minute))

	instanceID := uuid.New()
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	summary, err := svc.Summary(context.Background(), instanceID, from, to)
	require.NoError(t, err)

	assert.Equal(t, int64(50), summary.TotalRequests)
	assert.Equal(t, int64(4300), summary.TotalTokens)
	assert.InDelta(t, 0.145, summary.TotalCost, 1e-9)
	assert.Len(t, summary.Models, 2)
}

func TestSummary_CacheHitOnSameWindowEnd(t *testing.T) {
	reader := &mockUsageReader{}
	svc := NewService(reader, storage.NewLRUCache(16, time.Minute))

	instanceID := uuid.New()
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	_, err := svc.Summary(context.Background(), instanceID, from, to)
	require.NoError(t, err)
	_, err = svc.Summary(context.Background(), instanceID, from, to)
	require.NoError(t, err)

	assert.Equal(t, 1, reader.summarizeCalls, "second identical query should hit the cache")
}

func TestSummary_RecomputeOnWindowEndChange(t *testing.T) {
	reader := &mockUsageReader{}
	svc := NewService(reader, storage.NewLRUCache(16, time.Minute))

	instanceID := uuid.New()
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Summary(context.Background(), instanceID, from, from.AddDate(0, 0, 10))
	require.NoError(t, err)
	_, err = svc.Summary(context.Background(), instanceID, from, from.AddDate(0, 0, 20))
	require.NoError(t, err)

	assert.Equal(t, 2, reader.summarizeCalls, "changed window end must recompute")
}

func TestSummary_CapacityBoundEvicts(t *testing.T) {
	reader := &mockUsageReader{}
	svc := NewService(reader, storage.NewLRUCache(2, time.Minute))

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	first := uuid.New()
	_, err := svc.Summary(context.Background(), first, from, to)
	require.NoError(t, err)

	// Two more instances push the first entry out of a capacity-2 cache
	for i := 0; i < 2; i++ {
		_, err := svc.Summary(context.Background(), uuid.New(), from, to)
		require.NoError(t, err)
	}

	_, err = svc.Summary(context.Background(), first, from, to)
	require.NoError(t, err)
	assert.Equal(t, 4, reader.summarizeCalls, "evicted entry must recompute")
}

func TestDaily_CachedUntilDayRollover(t *testing.T) {
	reader := &mockUsageReader{
		dailies: []storage.DailyUsageTotal{
			{Day: time.Now().UTC().Truncate(24 * time.Hour), Requests: 5, TotalTokens: 1200, Cost: 0.01},
		},
	}
	svc := NewService(reader, storage.NewLRUCache(16, time.Minute))

	instanceID := uuid.New()

	report, err := svc.Daily(context.Background(), instanceID, 7)
	require.NoError(t, err)
	assert.Len(t, report.Days, 1)
	assert.Equal(t, 7, int(report.To.Sub(report.From).Hours()/24))

	_, err = svc.Daily(context.Background(), instanceID, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, reader.dailyCalls)
}

func TestDaily_DefaultWindow(t *testing.T) {
	reader := &mockUsageReader{}
	svc := NewService(reader, storage.NewLRUCache(16, time.Minute))

	report, err := svc.Daily(context.Background(), uuid.New(), 0)
	require.NoError(t, err)
	assert.Equal(t, 30, int(report.To.Sub(report.From).Hours()/24))
}

func TestSummary_DistinctInstancesDistinctEntries(t *testing.T) {
	reader := &mockUsageReader{}
	svc := NewService(reader, storage.NewLRUCache(16, time.Minute))

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	for i := 0; i < 3; i++ {
		id := uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-00000000000%d", i+1))
		_, err := svc.Summary(context.Background(), id, from, to)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, reader.summarizeCalls)
}
