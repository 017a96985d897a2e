package migration

import (
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/lumenwell/aimeter/internal/config"
	ledgerdomain "github.com/lumenwell/aimeter/internal/ledger/domain"
	quotadomain "github.com/lumenwell/aimeter/internal/quota/domain"
)

// registeredUser mirrors the host application's users table so local sqlite
// and mysql setups work out of the box. Postgres uses the SQL migrations.
type registeredUser struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false"`
	Email     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (registeredUser) TableName() string { return "users" }

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBConfig().Type == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		return conn.AutoMigrate(
			&ledgerdomain.UsageEvent{},
			&quotadomain.UserQuota{},
			&registeredUser{},
		)
	}),
)
