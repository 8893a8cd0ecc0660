package cascade

import (
	"github.com/smallbiznis/chatdesk/internal/cascade/repository"
	"github.com/smallbiznis/chatdesk/internal/cascade/service"
	"go.uber.org/fx"
)

var Module = fx.Module("cascade.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
