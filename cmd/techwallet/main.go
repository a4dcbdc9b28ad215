package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/techwallet/internal/clock"
	"github.com/smallbiznis/techwallet/internal/config"
	"github.com/smallbiznis/techwallet/internal/migration"
	"github.com/smallbiznis/techwallet/internal/observability"
	"github.com/smallbiznis/techwallet/internal/scheduler"
	"github.com/smallbiznis/techwallet/internal/server"
	"github.com/smallbiznis/techwallet/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) *snowflake.Node {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		panic(err)
	}
	return node
}
