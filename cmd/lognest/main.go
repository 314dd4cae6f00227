package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lognest/internal/clock"
	"github.com/smallbiznis/lognest/internal/config"
	"github.com/smallbiznis/lognest/internal/migration"
	"github.com/smallbiznis/lognest/internal/observability"
	"github.com/smallbiznis/lognest/internal/server"
	"github.com/smallbiznis/lognest/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Schema and seed data before the server accepts traffic
		migration.Module,

		// HTTP surface plus the domain modules it serves
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
