package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/lumenwell/aimeter/internal/clock"
	"github.com/lumenwell/aimeter/internal/config"
	"github.com/lumenwell/aimeter/internal/migration"
	"github.com/lumenwell/aimeter/internal/observability"
	"github.com/lumenwell/aimeter/internal/server"
	"github.com/lumenwell/aimeter/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP surface plus the metering domains it serves
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
