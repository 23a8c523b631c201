package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/praxialabs/praxia/internal/clock"
	"github.com/praxialabs/praxia/internal/migration"
	"github.com/praxialabs/praxia/internal/observability"
	"github.com/praxialabs/praxia/internal/server"
	"github.com/praxialabs/praxia/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	nodeID := int64(1)
	if raw := os.Getenv("SNOWFLAKE_NODE_ID"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			nodeID = parsed
		}
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		panic(err)
	}
	return node
}
