package service

import (
	"context"
	"sort"
	"time"

	analyticsdomain "github.com/lumenwell/aimeter/internal/analytics/domain"
	"github.com/lumenwell/aimeter/internal/clock"
	"github.com/lumenwell/aimeter/internal/config"
	dailylimitdomain "github.com/lumenwell/aimeter/internal/dailylimit/domain"
	ledgerdomain "github.com/lumenwell/aimeter/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Cfg     config.Config
	Clock   clock.Clock
	Ledger  ledgerdomain.Repository
	Limiter dailylimitdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	ledger  ledgerdomain.Repository
	limiter dailylimitdomain.Service

	defaultQuota    int64
	dailyTokenLimit int64
}

func NewService(p ServiceParam) analyticsdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("analytics.service"),
		clock:   p.Clock,
		ledger:  p.Ledger,
		limiter: p.Limiter,

		defaultQuota:    p.Cfg.DefaultMonthlyQuota,
		dailyTokenLimit: p.Cfg.DailyTokenLimit,
	}
}

func (s *Service) UserTokenStats(ctx context.Context, userID *int64) []analyticsdomain.UserStats {
	userIDs, err := s.resolveUserIDs(ctx, userID)
	if err != nil {
		s.log.Error("user stats read failed", zap.Error(err))
		return []analyticsdomain.UserStats{}
	}

	now := s.clock.Now().UTC()
	dayStart, dayEnd := dayWindow(now)
	monthStart, monthEnd := monthWindow(now)

	stats := make([]analyticsdomain.UserStats, 0, len(userIDs))
	for _, id := range userIDs {
		row, err := s.userStatsRow(ctx, id, dayStart, dayEnd, monthStart, monthEnd)
		if err != nil {
			s.log.Error("user stats read failed",
				zap.Int64("user_id", id),
				zap.Error(err),
			)
			return []analyticsdomain.UserStats{}
		}
		stats = append(stats, row)
	}
	return stats
}

func (s *Service) TokenUsageByPeriod(ctx context.Context, userID *int64, period analyticsdomain.Period) []analyticsdomain.PeriodPoint {
	type eventRow struct {
		CreatedAt   time.Time
		TotalTokens int64
		CostCents   int64
	}

	query := `SELECT created_at, total_tokens, cost_cents FROM usage_events`
	args := []any{}
	if userID != nil {
		query += ` WHERE user_id = ?`
		args = append(args, *userID)
	}
	query += ` ORDER BY created_at ASC`

	var rows []eventRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		s.log.Error("usage series read failed", zap.Error(err))
		return []analyticsdomain.PeriodPoint{}
	}

	// Bucketing happens here rather than in SQL so the query stays portable
	// across the supported dialects.
	buckets := map[string]*analyticsdomain.PeriodPoint{}
	for _, row := range rows {
		key := bucketKey(row.CreatedAt.UTC(), period)
		point, ok := buckets[key]
		if !ok {
			point = &analyticsdomain.PeriodPoint{Date: key}
			buckets[key] = point
		}
		point.Tokens += row.TotalTokens
		point.CostCents += row.CostCents
	}

	points := make([]analyticsdomain.PeriodPoint, 0, len(buckets))
	for _, point := range buckets {
		points = append(points, *point)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}

func (s *Service) AggregatedTokenStats(ctx context.Context) analyticsdomain.AggregatedStats {
	var totals struct {
		TotalTokens    int64
		TotalCostCents int64
		ActiveUsers    int64
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(total_tokens), 0) AS total_tokens,
		        COALESCE(SUM(cost_cents), 0) AS total_cost_cents,
		        COUNT(DISTINCT user_id) AS active_users
		 FROM usage_events
		 WHERE total_tokens > 0 OR cost_cents > 0`,
	).Scan(&totals).Error
	if err != nil {
		s.log.Error("aggregate stats read failed", zap.Error(err))
		return analyticsdomain.AggregatedStats{}
	}

	var registered int64
	if err := s.db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM users`).Scan(&registered).Error; err != nil {
		s.log.Error("registered user count failed", zap.Error(err))
		return analyticsdomain.AggregatedStats{}
	}

	avg := 0.0
	if registered > 0 {
		avg = float64(totals.TotalTokens) / float64(registered)
	}

	return analyticsdomain.AggregatedStats{
		TotalTokens:      totals.TotalTokens,
		TotalCostCents:   totals.TotalCostCents,
		ActiveUsers:      totals.ActiveUsers,
		AvgTokensPerUser: avg,
	}
}

func (s *Service) resolveUserIDs(ctx context.Context, userID *int64) ([]int64, error) {
	if userID != nil {
		return []int64{*userID}, nil
	}

	ledgerIDs, err := s.ledger.DistinctUserIDs(ctx, s.db)
	if err != nil {
		return nil, err
	}

	var quotaIDs []int64
	if err := s.db.WithContext(ctx).Raw(
		`SELECT user_id FROM user_quotas ORDER BY user_id ASC`,
	).Scan(&quotaIDs).Error; err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(ledgerIDs)+len(quotaIDs))
	merged := make([]int64, 0, len(ledgerIDs)+len(quotaIDs))
	for _, id := range append(ledgerIDs, quotaIDs...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
	return merged, nil
}

func (s *Service) userStatsRow(ctx context.Context, userID int64, dayStart, dayEnd, monthStart, monthEnd time.Time) (analyticsdomain.UserStats, error) {
	var totals struct {
		TotalTokens    int64
		TotalCostCents int64
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(total_tokens), 0) AS total_tokens,
		        COALESCE(SUM(cost_cents), 0) AS total_cost_cents
		 FROM usage_events WHERE user_id = ?`,
		userID,
	).Scan(&totals).Error
	if err != nil {
		return analyticsdomain.UserStats{}, err
	}

	tokensToday, err := s.ledger.SumTokens(ctx, s.db, userID, dayStart, dayEnd)
	if err != nil {
		return analyticsdomain.UserStats{}, err
	}
	tokensMonth, err := s.ledger.SumTokens(ctx, s.db, userID, monthStart, monthEnd)
	if err != nil {
		return analyticsdomain.UserStats{}, err
	}

	monthlyQuota, currentUsage, err := s.quotaRow(ctx, userID)
	if err != nil {
		return analyticsdomain.UserStats{}, err
	}
	monthlyRemaining := monthlyQuota - currentUsage
	if monthlyRemaining < 0 {
		monthlyRemaining = 0
	}

	decision := s.limiter.Check(ctx, userID)

	return analyticsdomain.UserStats{
		UserID:           userID,
		TotalTokens:      totals.TotalTokens,
		TokensToday:      tokensToday,
		TokensThisMonth:  tokensMonth,
		TotalCostCents:   totals.TotalCostCents,
		MonthlyQuota:     monthlyQuota,
		MonthlyRemaining: monthlyRemaining,
		DailyLimit:       decision.DailyLimit,
		DailyRemaining:   decision.Remaining,
	}, nil
}

// quotaRow reads the quota table without lazily creating rows. Users who have
// never touched the quota path report the configured defaults.
func (s *Service) quotaRow(ctx context.Context, userID int64) (int64, int64, error) {
	var row struct {
		UserID       int64
		MonthlyQuota int64
		CurrentUsage int64
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT user_id, monthly_quota, current_usage FROM user_quotas WHERE user_id = ?`,
		userID,
	).Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	if row.UserID == 0 {
		return s.defaultQuota, 0, nil
	}
	return row.MonthlyQuota, row.CurrentUsage, nil
}

func dayWindow(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

func monthWindow(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func bucketKey(t time.Time, period analyticsdomain.Period) string {
	switch period {
	case analyticsdomain.PeriodWeek:
		// Buckets start on Monday.
		offset := (int(t.Weekday()) + 6) % 7
		return t.AddDate(0, 0, -offset).Format("2006-01-02")
	case analyticsdomain.PeriodMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
