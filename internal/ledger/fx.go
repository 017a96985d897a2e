package ledger

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	ledgerdomain "github.com/lumenwell/aimeter/internal/ledger/domain"
	"github.com/lumenwell/aimeter/internal/ledger/repository"
	genericrepo "github.com/lumenwell/aimeter/pkg/repository"
)

func provideEventStore(db *gorm.DB) genericrepo.Reader[ledgerdomain.UsageEvent] {
	return genericrepo.ProvideReader[ledgerdomain.UsageEvent](db)
}

var Module = fx.Module("ledger.repository",
	fx.Provide(
		repository.Provide,
		provideEventStore,
	),
)
