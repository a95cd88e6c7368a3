package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chargeview/internal/clock"
	"github.com/smallbiznis/chargeview/internal/config"
	"github.com/smallbiznis/chargeview/internal/observability"
	"github.com/smallbiznis/chargeview/internal/server"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		server.Module,
	)
	app.Run()
}

// RegisterSnowflake issues usage window tickets. NODE_ID must differ per replica.
func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
