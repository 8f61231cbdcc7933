package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_share/internal/auth"
	"llm_share/internal/config"
	"llm_share/internal/stats"
	"llm_share/internal/storage"
	"llm_share/internal/utils"
)

type fixedUsageReader struct {
	summaries []storage.ModelUsageSummary
	daily     []storage.DailyUsageTotal
}

func (r *fixedUsageReader) SummarizeByModel(ctx context.Context, instanceID uuid.UUID, from, to time.Time) ([]storage.ModelUsageSummary, error) {
	return r.summaries, nil
}

func (r *fixedUsageReader) DailyTotals(ctx context.Context, instanceID uuid.UUID, from, to time.Time) ([]storage.DailyUsageTotal, error) {
	return r.daily, nil
}

func newAdminDeps(t *testing.T) *Dependencies {
	t.Helper()

	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)

	reader := &fixedUsageReader{
		summaries: []storage.ModelUsageSummary{
			{Model: "gpt-4o", Requests: 10, TotalTokens: 2000, Cost: 0.5},
		},
		daily: []storage.DailyUsageTotal{
			{Day: time.Now().UTC().Truncate(24 * time.Hour), Requests: 10, TotalTokens: 2000, Cost: 0.5},
		},
	}

	return &Dependencies{
		Stats: stats.NewService(reader, storage.NewLRUCache(8, time.Minute)),
		Admin: config.AdminConfig{
			PasswordHash: hash,
			JWTSecret:    []byte("test-secret"),
			TokenTTL:     time.Hour,
		},
		logger: utils.NewLogger("test"),
	}
}

func TestAdminLogin_Success(t *testing.T) {
	deps := newAdminDeps(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/admin/auth/login", strings.NewReader(`{"password":"correct horse"}`))
	deps.handleAdminLogin(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	_, err := auth.ValidateAdminJWT(resp.Token, deps.Admin.JWTSecret)
	assert.NoError(t, err)
}

func TestAdminLogin_WrongPassword(t *testing.T) {
	deps := newAdminDeps(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/admin/auth/login", strings.NewReader(`{"password":"wrong"}`))
	deps.handleAdminLogin(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", decodeDetail(t, w.Body))
}

func TestAdminLogin_NoConfiguredHash(t *testing.T) {
	deps := newAdminDeps(t)
	deps.Admin.PasswordHash = ""

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/admin/auth/login", strings.NewReader(`{"password":""}`))
	deps.handleAdminLogin(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatsSummary(t *testing.T) {
	deps := newAdminDeps(t)
	instanceID := uuid.New()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/admin/stats/summary?instance="+instanceID.String(), nil)
	deps.handleStatsSummary(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var summary stats.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, instanceID, summary.InstanceID)
	assert.Equal(t, int64(10), summary.TotalRequests)
	assert.Equal(t, int64(2000), summary.TotalTokens)
	assert.InDelta(t, 0.5, summary.TotalCost, 1e-9)
}

func TestStatsSummary_InvalidWindow(t *testing.T) {
	deps := newAdminDeps(t)
	instanceID := uuid.New()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet,
		"/admin/stats/summary?instance="+instanceID.String()+"&from=2026-02-01T00:00:00Z&to=2026-01-01T00:00:00Z", nil)
	deps.handleStatsSummary(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsSummary_MissingInstance(t *testing.T) {
	deps := newAdminDeps(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/admin/stats/summary", nil)
	deps.handleStatsSummary(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsDaily(t *testing.T) {
	deps := newAdminDeps(t)
	instanceID := uuid.New()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/admin/stats/daily?instance="+instanceID.String()+"&days=7", nil)
	deps.handleStatsDaily(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var report stats.DailyReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, instanceID, report.InstanceID)
	require.Len(t, report.Days, 1)
	assert.Equal(t, int64(10), report.Days[0].Requests)
}

func TestStatsDaily_InvalidDays(t *testing.T) {
	deps := newAdminDeps(t)
	instanceID := uuid.New()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/admin/stats/daily?instance="+instanceID.String()+"&days=nope", nil)
	deps.handleStatsDaily(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
