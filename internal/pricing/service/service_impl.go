package service

import (
	"math"
	"strings"

	"github.com/lumenwell/aimeter/internal/config"
	pricingdomain "github.com/lumenwell/aimeter/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log     *zap.Logger
	Pricing *config.PricingConfigHolder
}

type Service struct {
	log     *zap.Logger
	pricing *config.PricingConfigHolder
}

func NewService(p ServiceParam) pricingdomain.Calculator {
	return &Service{
		log:     p.Log.Named("pricing.service"),
		pricing: p.Pricing,
	}
}

// CostCents prices one invocation against the current table. Unknown models
// degrade to the default entry; negative counts clamp to zero.
func (s *Service) CostCents(model string, promptTokens, completionTokens int64) int64 {
	cfg := s.pricing.Get()

	price, ok := cfg.Models[strings.TrimSpace(model)]
	if !ok {
		price = cfg.Models[cfg.DefaultModel]
	}

	if promptTokens < 0 {
		promptTokens = 0
	}
	if completionTokens < 0 {
		completionTokens = 0
	}

	usd := float64(promptTokens)*price.Input + float64(completionTokens)*price.Output
	return int64(math.Round(usd * 100))
}
