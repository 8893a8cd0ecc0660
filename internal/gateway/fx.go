package gateway

import (
	"fmt"

	"github.com/smallbiznis/chatdesk/internal/config"
	"github.com/smallbiznis/chatdesk/internal/gateway/domain"
	"github.com/smallbiznis/chatdesk/internal/gateway/httpgateway"
	"github.com/smallbiznis/chatdesk/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("gateway",
	fx.Provide(func() *Registry {
		return NewRegistry(httpgateway.NewFactory())
	}),
	fx.Provide(NewConfiguredProvider),
)

type ProviderParams struct {
	fx.In

	Config   config.Config
	Registry *Registry
	Limiter  *ratelimit.SendLimiter
	Log      *zap.Logger
}

// NewConfiguredProvider builds the provider named by GATEWAY_PROVIDER and
// wraps it with the per-account send limiter.
func NewConfiguredProvider(p ProviderParams) (domain.Provider, error) {
	provider, err := p.Registry.NewProvider(p.Config.Gateway.Provider, domain.ProviderConfig{
		BaseURL: p.Config.Gateway.BaseURL,
		APIKey:  p.Config.Gateway.APIKey,
		Timeout: p.Config.Gateway.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway provider %q: %w", p.Config.Gateway.Provider, err)
	}
	return NewRateLimitedProvider(provider, p.Limiter, p.Log.Named("gateway")), nil
}
