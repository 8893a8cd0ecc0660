package router

import (
	"github.com/smallbiznis/chatdesk/internal/cache"
	"github.com/smallbiznis/chatdesk/internal/router/service"
	"go.uber.org/fx"
)

var Module = fx.Module("router.service",
	fx.Provide(cache.NewAccountResolverCache),
	fx.Provide(service.New),
)
