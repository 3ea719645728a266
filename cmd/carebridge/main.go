package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/clock"
	"github.com/smallbiznis/carebridge/internal/config"
	"github.com/smallbiznis/carebridge/internal/logger"
	"github.com/smallbiznis/carebridge/internal/migration"
	"github.com/smallbiznis/carebridge/internal/observability"
	"github.com/smallbiznis/carebridge/internal/seed"
	"github.com/smallbiznis/carebridge/internal/server"
	"github.com/smallbiznis/carebridge/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.WithLogger(logger.FxLogger),
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		seed.Module,
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
