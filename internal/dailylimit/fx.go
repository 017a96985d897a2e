package dailylimit

import (
	"github.com/lumenwell/aimeter/internal/dailylimit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dailylimit.service",
	fx.Provide(service.NewService),
)
