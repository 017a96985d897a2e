package recorder

import (
	"github.com/lumenwell/aimeter/internal/recorder/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recorder.service",
	fx.Provide(service.NewService),
)
