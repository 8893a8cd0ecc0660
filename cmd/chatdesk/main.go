package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chatdesk/internal/account"
	"github.com/smallbiznis/chatdesk/internal/audit"
	"github.com/smallbiznis/chatdesk/internal/authorization"
	"github.com/smallbiznis/chatdesk/internal/cascade"
	"github.com/smallbiznis/chatdesk/internal/clock"
	"github.com/smallbiznis/chatdesk/internal/config"
	"github.com/smallbiznis/chatdesk/internal/conversation"
	"github.com/smallbiznis/chatdesk/internal/gateway"
	"github.com/smallbiznis/chatdesk/internal/inbox"
	"github.com/smallbiznis/chatdesk/internal/message"
	"github.com/smallbiznis/chatdesk/internal/migration"
	"github.com/smallbiznis/chatdesk/internal/notify"
	"github.com/smallbiznis/chatdesk/internal/observability"
	"github.com/smallbiznis/chatdesk/internal/pipeline"
	"github.com/smallbiznis/chatdesk/internal/ratelimit"
	"github.com/smallbiznis/chatdesk/internal/reconcile"
	"github.com/smallbiznis/chatdesk/internal/router"
	"github.com/smallbiznis/chatdesk/internal/seed"
	"github.com/smallbiznis/chatdesk/internal/server"
	"github.com/smallbiznis/chatdesk/internal/team"
	"github.com/smallbiznis/chatdesk/internal/tenant"
	"github.com/smallbiznis/chatdesk/internal/unread"
	"github.com/smallbiznis/chatdesk/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional Domains
		audit.Module,
		tenant.Module,
		account.Module,
		inbox.Module,
		team.Module,
		conversation.Module,
		unread.Module,
		message.Module,

		// Integration
		ratelimit.Module,
		gateway.Module,
		notify.Module,
		router.Module,
		pipeline.Module,
		cascade.Module,
		authorization.Module,
		reconcile.Module,
		seed.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
