package unread

import (
	"github.com/smallbiznis/chatdesk/internal/unread/service"
	"go.uber.org/fx"
)

var Module = fx.Module("unread.service",
	fx.Provide(service.New),
)
