package service

import (
	"context"
	"time"

	"github.com/lumenwell/aimeter/internal/clock"
	"github.com/lumenwell/aimeter/internal/config"
	dailylimitdomain "github.com/lumenwell/aimeter/internal/dailylimit/domain"
	ledgerdomain "github.com/lumenwell/aimeter/internal/ledger/domain"
	obsmetrics "github.com/lumenwell/aimeter/internal/observability/metrics"
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
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	ledger  ledgerdomain.Repository
	metrics *obsmetrics.Metrics

	limit int64
}

func NewService(p ServiceParam) dailylimitdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("dailylimit.service"),
		clock:   p.Clock,
		ledger:  p.Ledger,
		metrics: p.Metrics,

		limit: p.Cfg.DailyTokenLimit,
	}
}

func (s *Service) Check(ctx context.Context, userID int64) dailylimitdomain.Decision {
	from, to := DayWindow(s.clock.Now())

	used, err := s.ledger.SumTokens(ctx, s.db, userID, from, to)
	if err != nil {
		// Fail open: a metering outage must never block a legitimate request.
		s.log.Error("daily limit check failed, admitting request",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		s.metrics.RecordLimitFailOpen(ctx)
		return dailylimitdomain.Decision{
			CanProceed:      true,
			TokensUsedToday: 0,
			Remaining:       s.limit,
			DailyLimit:      s.limit,
		}
	}

	remaining := s.limit - used
	if remaining < 0 {
		remaining = 0
	}

	decision := dailylimitdomain.Decision{
		CanProceed:      used < s.limit,
		TokensUsedToday: used,
		Remaining:       remaining,
		DailyLimit:      s.limit,
	}
	if !decision.CanProceed {
		s.metrics.RecordDailyLimitDenied(ctx)
	}
	return decision
}

// DayWindow returns the half-open UTC calendar day containing t.
func DayWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
