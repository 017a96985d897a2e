package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	analyticsdomain "github.com/lumenwell/aimeter/internal/analytics/domain"
	"github.com/lumenwell/aimeter/internal/clock"
	"github.com/lumenwell/aimeter/internal/config"
	dailylimitservice "github.com/lumenwell/aimeter/internal/dailylimit/service"
	ledgerdomain "github.com/lumenwell/aimeter/internal/ledger/domain"
	ledgerrepo "github.com/lumenwell/aimeter/internal/ledger/repository"
	quotadomain "github.com/lumenwell/aimeter/internal/quota/domain"
)

type analyticsFixture struct {
	svc   analyticsdomain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
}

func setupAnalytics(t *testing.T) *analyticsFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(&ledgerdomain.UsageEvent{}, &quotadomain.UserQuota{}))
	require.NoError(t, db.Exec(
		`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL, created_at DATETIME NOT NULL)`,
	).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{
		DailyTokenLimit:      16_000,
		DefaultMonthlyQuota:  500_000,
		DefaultQuotaResetDay: 1,
	}
	log := zap.NewNop()
	ledger := ledgerrepo.Provide()

	limiter := dailylimitservice.NewService(dailylimitservice.ServiceParam{
		DB:     db,
		Log:    log,
		Cfg:    cfg,
		Clock:  fake,
		Ledger: ledger,
	})

	svc := NewService(ServiceParam{
		DB:      db,
		Log:     log,
		Cfg:     cfg,
		Clock:   fake,
		Ledger:  ledger,
		Limiter: limiter,
	})

	return &analyticsFixture{svc: svc, db: db, node: node, clock: fake}
}

func (f *analyticsFixture) insertEvent(t *testing.T, userID, tokens, costCents int64, at time.Time) {
	t.Helper()
	err := ledgerrepo.Provide().Insert(context.Background(), f.db, &ledgerdomain.UsageEvent{
		ID:          f.node.Generate(),
		UserID:      userID,
		CoachType:   ledgerdomain.CoachGeneral,
		TotalTokens: tokens,
		CostCents:   costCents,
		Model:       "gpt-4o",
		CreatedAt:   at.UTC(),
	})
	require.NoError(t, err)
}

func (f *analyticsFixture) registerUsers(t *testing.T, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		err := f.db.Exec(
			`INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)`,
			i, fmt.Sprintf("user%d@example.com", i), f.clock.Now(),
		).Error
		require.NoError(t, err)
	}
}

func TestAggregatedTokenStats(t *testing.T) {
	f := setupAnalytics(t)
	now := f.clock.Now()

	// Three users recorded events; one of them only zero-token events, so it
	// does not count as active. Five users are registered overall.
	f.insertEvent(t, 1, 100, 1, now)
	f.insertEvent(t, 2, 200, 2, now)
	f.insertEvent(t, 3, 0, 0, now)
	f.registerUsers(t, 5)

	stats := f.svc.AggregatedTokenStats(context.Background())
	assert.Equal(t, int64(300), stats.TotalTokens)
	assert.Equal(t, int64(3), stats.TotalCostCents)
	assert.Equal(t, int64(2), stats.ActiveUsers)
	assert.InDelta(t, 60.0, stats.AvgTokensPerUser, 1e-9)
}

func TestAggregatedTokenStatsEmpty(t *testing.T) {
	f := setupAnalytics(t)

	stats := f.svc.AggregatedTokenStats(context.Background())
	assert.Equal(t, int64(0), stats.TotalTokens)
	assert.Equal(t, int64(0), stats.ActiveUsers)
	assert.Equal(t, 0.0, stats.AvgTokensPerUser)
}

func TestUserTokenStatsSingleUser(t *testing.T) {
	f := setupAnalytics(t)
	now := f.clock.Now()

	f.insertEvent(t, 1, 1_000, 5, now)
	f.insertEvent(t, 1, 2_000, 10, now.AddDate(0, 0, -3)) // this month, not today
	f.insertEvent(t, 1, 4_000, 20, now.AddDate(0, -1, 0)) // previous month
	f.insertEvent(t, 2, 9_000, 45, now)

	userID := int64(1)
	stats := f.svc.UserTokenStats(context.Background(), &userID)
	require.Len(t, stats, 1)

	row := stats[0]
	assert.Equal(t, int64(1), row.UserID)
	assert.Equal(t, int64(7_000), row.TotalTokens)
	assert.Equal(t, int64(1_000), row.TokensToday)
	assert.Equal(t, int64(3_000), row.TokensThisMonth)
	assert.Equal(t, int64(35), row.TotalCostCents)
	assert.Equal(t, int64(500_000), row.MonthlyQuota)
	assert.Equal(t, int64(16_000), row.DailyLimit)
	assert.Equal(t, int64(15_000), row.DailyRemaining)
}

func TestUserTokenStatsAllUsersMergesQuotaRows(t *testing.T) {
	f := setupAnalytics(t)
	now := f.clock.Now()

	f.insertEvent(t, 1, 500, 3, now)
	// User 9 has a quota row but no recorded events yet.
	require.NoError(t, f.db.Exec(
		`INSERT INTO user_quotas (user_id, monthly_quota, current_usage, last_reset_at, reset_day, active, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		9, 250_000, 1_000, now, 1, true, now,
	).Error)

	stats := f.svc.UserTokenStats(context.Background(), nil)
	require.Len(t, stats, 2)

	assert.Equal(t, int64(1), stats[0].UserID)
	assert.Equal(t, int64(9), stats[1].UserID)
	assert.Equal(t, int64(250_000), stats[1].MonthlyQuota)
	assert.Equal(t, int64(249_000), stats[1].MonthlyRemaining)
	assert.Equal(t, int64(0), stats[1].TotalTokens)
}

func TestUserTokenStatsFailsSoft(t *testing.T) {
	f := setupAnalytics(t)

	require.NoError(t, f.db.Exec(`DROP TABLE usage_events`).Error)

	stats := f.svc.UserTokenStats(context.Background(), nil)
	assert.Empty(t, stats)
}

func TestTokenUsageByPeriodDay(t *testing.T) {
	f := setupAnalytics(t)

	f.insertEvent(t, 1, 100, 1, time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC))
	f.insertEvent(t, 1, 200, 2, time.Date(2026, 3, 9, 21, 0, 0, 0, time.UTC))
	f.insertEvent(t, 1, 400, 4, time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC))

	points := f.svc.TokenUsageByPeriod(context.Background(), nil, analyticsdomain.PeriodDay)
	require.Len(t, points, 2)

	assert.Equal(t, "2026-03-09", points[0].Date)
	assert.Equal(t, int64(300), points[0].Tokens)
	assert.Equal(t, int64(3), points[0].CostCents)
	assert.Equal(t, "2026-03-10", points[1].Date)
	assert.Equal(t, int64(400), points[1].Tokens)
}

func TestTokenUsageByPeriodWeekStartsMonday(t *testing.T) {
	f := setupAnalytics(t)

	// 2026-03-08 is a Sunday, 2026-03-09 a Monday.
	f.insertEvent(t, 1, 100, 1, time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC))
	f.insertEvent(t, 1, 200, 2, time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC))
	f.insertEvent(t, 1, 400, 4, time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC))

	points := f.svc.TokenUsageByPeriod(context.Background(), nil, analyticsdomain.PeriodWeek)
	require.Len(t, points, 2)

	assert.Equal(t, "2026-03-02", points[0].Date)
	assert.Equal(t, int64(100), points[0].Tokens)
	assert.Equal(t, "2026-03-09", points[1].Date)
	assert.Equal(t, int64(600), points[1].Tokens)
}

func TestTokenUsageByPeriodMonthFiltersUser(t *testing.T) {
	f := setupAnalytics(t)

	f.insertEvent(t, 1, 100, 1, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC))
	f.insertEvent(t, 1, 200, 2, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	f.insertEvent(t, 2, 999, 9, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))

	userID := int64(1)
	points := f.svc.TokenUsageByPeriod(context.Background(), &userID, analyticsdomain.PeriodMonth)
	require.Len(t, points, 2)

	assert.Equal(t, "2026-02", points[0].Date)
	assert.Equal(t, int64(100), points[0].Tokens)
	assert.Equal(t, "2026-03", points[1].Date)
	assert.Equal(t, int64(200), points[1].Tokens)
}
