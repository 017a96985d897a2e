package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	analyticsdomain "github.com/lumenwell/aimeter/internal/analytics/domain"
	dailylimitdomain "github.com/lumenwell/aimeter/internal/dailylimit/domain"
	ledgerdomain "github.com/lumenwell/aimeter/internal/ledger/domain"
	quotadomain "github.com/lumenwell/aimeter/internal/quota/domain"
	recorderdomain "github.com/lumenwell/aimeter/internal/recorder/domain"
)

type fakeRecorderService struct {
	lastReq recorderdomain.RecordRequest
	event   *ledgerdomain.UsageEvent
	err     error
}

func (f *fakeRecorderService) Record(ctx context.Context, req recorderdomain.RecordRequest) (*ledgerdomain.UsageEvent, error) {
	f.lastReq = req
	_ = ctx
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

type fakeDailyLimitService struct {
	decision dailylimitdomain.Decision
}

func (f *fakeDailyLimitService) Check(ctx context.Context, userID int64) dailylimitdomain.Decision {
	_ = ctx
	_ = userID
	return f.decision
}

type fakeQuotaService struct {
	status    quotadomain.QuotaStatus
	overruled *quotadomain.UserQuota
	err       error

	lastOverrideQuota int64
}

func (f *fakeQuotaService) ApplyUsage(ctx context.Context, userID, tokens int64) error {
	_ = ctx
	_ = userID
	_ = tokens
	return f.err
}

func (f *fakeQuotaService) Check(ctx context.Context, userID int64) (quotadomain.QuotaStatus, error) {
	_ = ctx
	_ = userID
	if f.err != nil {
		return quotadomain.QuotaStatus{}, f.err
	}
	return f.status, nil
}

func (f *fakeQuotaService) Override(ctx context.Context, userID, monthlyQuota int64) (*quotadomain.UserQuota, error) {
	_ = ctx
	_ = userID
	f.lastOverrideQuota = monthlyQuota
	if f.err != nil {
		return nil, f.err
	}
	return f.overruled, nil
}

type fakeAnalyticsService struct {
	stats      []analyticsdomain.UserStats
	points     []analyticsdomain.PeriodPoint
	aggregated analyticsdomain.AggregatedStats
}

func (f *fakeAnalyticsService) UserTokenStats(ctx context.Context, userID *int64) []analyticsdomain.UserStats {
	_ = ctx
	_ = userID
	return f.stats
}

func (f *fakeAnalyticsService) TokenUsageByPeriod(ctx context.Context, userID *int64, period analyticsdomain.Period) []analyticsdomain.PeriodPoint {
	_ = ctx
	_ = userID
	_ = period
	return f.points
}

func (f *fakeAnalyticsService) AggregatedTokenStats(ctx context.Context) analyticsdomain.AggregatedStats {
	_ = ctx
	return f.aggregated
}

func newTestServer(srv *Server) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	srv.engine = router
	srv.registerAPIRoutes()
	srv.registerAdminRoutes()
	return router
}

func TestCheckDailyLimitHandler(t *testing.T) {
	limiter := &fakeDailyLimitService{
		decision: dailylimitdomain.Decision{
			CanProceed:      true,
			TokensUsedToday: 1200,
			Remaining:       14_800,
			DailyLimit:      16_000,
		},
	}
	router := newTestServer(&Server{dailyLimitSvc: limiter})

	req := httptest.NewRequest(http.MethodGet, "/v1/users/7/daily-limit", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var decision dailylimitdomain.Decision
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &decision))
	assert.True(t, decision.CanProceed)
	assert.Equal(t, int64(14_800), decision.Remaining)
}

func TestCheckDailyLimitRejectsBadUserID(t *testing.T) {
	router := newTestServer(&Server{dailyLimitSvc: &fakeDailyLimitService{}})

	for _, raw := range []string{"abc", "-4", "0"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/users/"+raw+"/daily-limit", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusBadRequest, resp.Code, "user_id %q", raw)
	}
}

func TestCheckQuotaHandler(t *testing.T) {
	quota := &fakeQuotaService{
		status: quotadomain.QuotaStatus{
			HasQuota:     true,
			Remaining:    499_000,
			MonthlyQuota: 500_000,
			CurrentUsage: 1_000,
		},
	}
	router := newTestServer(&Server{quotaSvc: quota})

	req := httptest.NewRequest(http.MethodGet, "/v1/users/7/quota", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var status quotadomain.QuotaStatus
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &status))
	assert.Equal(t, int64(499_000), status.Remaining)
}

func TestRecordUsageHandler(t *testing.T) {
	recorder := &fakeRecorderService{
		event: &ledgerdomain.UsageEvent{
			UserID:      7,
			TotalTokens: 800,
			CostCents:   1,
		},
	}
	router := newTestServer(&Server{recorderSvc: recorder})

	body := `{"user_id":7,"coach_type":"sleep","prompt_tokens":500,"completion_tokens":300,"model":"gpt-4o"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/usage", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(7), recorder.lastReq.UserID)
	assert.Equal(t, int64(500), recorder.lastReq.PromptTokens)
}

func TestRecordUsageMapsValidationError(t *testing.T) {
	recorder := &fakeRecorderService{err: recorderdomain.ErrInvalidModel}
	router := newTestServer(&Server{recorderSvc: recorder})

	body := `{"user_id":7,"prompt_tokens":1,"completion_tokens":1,"model":""}`
	req := httptest.NewRequest(http.MethodPost, "/v1/usage", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRecordUsageRejectsMalformedBody(t *testing.T) {
	router := newTestServer(&Server{recorderSvc: &fakeRecorderService{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/usage", bytes.NewBufferString(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUpdateQuotaHandler(t *testing.T) {
	quota := &fakeQuotaService{
		overruled: &quotadomain.UserQuota{UserID: 7, MonthlyQuota: 750_000},
	}
	router := newTestServer(&Server{quotaSvc: quota})

	req := httptest.NewRequest(http.MethodPut, "/admin/users/7/quota", bytes.NewBufferString(`{"monthly_quota":750000}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(750_000), quota.lastOverrideQuota)
}

func TestUpdateQuotaMapsDomainError(t *testing.T) {
	quota := &fakeQuotaService{err: quotadomain.ErrInvalidQuota}
	router := newTestServer(&Server{quotaSvc: quota})

	req := httptest.NewRequest(http.MethodPut, "/admin/users/7/quota", bytes.NewBufferString(`{"monthly_quota":-5}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUsageSeriesRejectsUnknownPeriod(t *testing.T) {
	router := newTestServer(&Server{analyticsSvc: &fakeAnalyticsService{}})

	req := httptest.NewRequest(http.MethodGet, "/admin/usage/series?period=fortnight", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUsageSummaryHandler(t *testing.T) {
	analytics := &fakeAnalyticsService{
		aggregated: analyticsdomain.AggregatedStats{
			TotalTokens:      300,
			TotalCostCents:   3,
			ActiveUsers:      2,
			AvgTokensPerUser: 60,
		},
	}
	router := newTestServer(&Server{analyticsSvc: analytics})

	req := httptest.NewRequest(http.MethodGet, "/admin/usage/summary", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var stats analyticsdomain.AggregatedStats
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.ActiveUsers)
	assert.InDelta(t, 60.0, stats.AvgTokensPerUser, 1e-9)
}
