package gateway

import (
	"strings"

	"github.com/smallbiznis/chatdesk/internal/gateway/domain"
)

type Registry struct {
	factories map[string]domain.ProviderFactory
}

func NewRegistry(factories ...domain.ProviderFactory) *Registry {
	registry := &Registry{factories: map[string]domain.ProviderFactory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		providerType := normalizeType(factory.Type())
		if providerType == "" {
			continue
		}
		registry.factories[providerType] = factory
	}
	return registry
}

func (r *Registry) ProviderExists(providerType string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[normalizeType(providerType)]
	return ok
}

func (r *Registry) NewProvider(providerType string, cfg domain.ProviderConfig) (domain.Provider, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	factory, ok := r.factories[normalizeType(providerType)]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return factory.NewProvider(cfg)
}

func normalizeType(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
