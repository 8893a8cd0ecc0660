package inbox

import (
	"github.com/smallbiznis/chatdesk/internal/inbox/repository"
	"github.com/smallbiznis/chatdesk/internal/inbox/service"
	"go.uber.org/fx"
)

var Module = fx.Module("inbox.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
