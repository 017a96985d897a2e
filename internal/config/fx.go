package config

import (
	"github.com/lumenwell/aimeter/pkg/db"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewPricingConfigHolder,
		func(cfg Config) db.Config { return cfg.DBConfig() },
	),
)
