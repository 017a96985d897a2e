package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/lumenwell/aimeter/internal/clock"
	ledgerdomain "github.com/lumenwell/aimeter/internal/ledger/domain"
	obsmetrics "github.com/lumenwell/aimeter/internal/observability/metrics"
	pricingdomain "github.com/lumenwell/aimeter/internal/pricing/domain"
	quotadomain "github.com/lumenwell/aimeter/internal/quota/domain"
	recorderdomain "github.com/lumenwell/aimeter/internal/recorder/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Ledger     ledgerdomain.Repository
	Calculator pricingdomain.Calculator
	QuotaSvc   quotadomain.Service
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	ledger     ledgerdomain.Repository
	calculator pricingdomain.Calculator
	quotaSvc   quotadomain.Service
	metrics    *obsmetrics.Metrics
}

func NewService(p ServiceParam) recorderdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("recorder.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		ledger:     p.Ledger,
		calculator: p.Calculator,
		quotaSvc:   p.QuotaSvc,
		metrics:    p.Metrics,
	}
}

func (s *Service) Record(ctx context.Context, req recorderdomain.RecordRequest) (*ledgerdomain.UsageEvent, error) {
	if err := validateRecordRequest(req); err != nil {
		return nil, err
	}

	totalTokens := req.PromptTokens + req.CompletionTokens
	costCents := s.calculator.CostCents(req.Model, req.PromptTokens, req.CompletionTokens)

	event := &ledgerdomain.UsageEvent{
		ID:               s.genID.Generate(),
		UserID:           req.UserID,
		CoachType:        ledgerdomain.NormalizeCoachType(req.CoachType),
		PromptTokens:     req.PromptTokens,
		CompletionTokens: req.CompletionTokens,
		TotalTokens:      totalTokens,
		CostCents:        costCents,
		Model:            strings.TrimSpace(req.Model),
		ConversationID:   req.ConversationID,
		CreatedAt:        s.clock.Now().UTC(),
	}

	if err := s.ledger.Insert(ctx, s.db, event); err != nil {
		return nil, err
	}

	if err := s.quotaSvc.ApplyUsage(ctx, req.UserID, totalTokens); err != nil {
		// The ledger row is already durable; the quota counter drifts until
		// the next reset. Surface the error and let the caller decide.
		s.log.Error("quota update failed after ledger append",
			zap.Int64("user_id", req.UserID),
			zap.String("event_id", event.ID.String()),
			zap.Error(err),
		)
		return event, err
	}

	s.metrics.RecordUsage(ctx, event.Model, string(event.CoachType), totalTokens)
	return event, nil
}

func validateRecordRequest(req recorderdomain.RecordRequest) error {
	if req.UserID <= 0 {
		return recorderdomain.ErrInvalidUser
	}
	if req.PromptTokens < 0 || req.CompletionTokens < 0 {
		return recorderdomain.ErrInvalidTokens
	}
	if strings.TrimSpace(req.Model) == "" {
		return recorderdomain.ErrInvalidModel
	}
	return nil
}
