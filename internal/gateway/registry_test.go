package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/chatdesk/internal/config"
	"github.com/smallbiznis/chatdesk/internal/gateway/domain"
	"github.com/smallbiznis/chatdesk/internal/gateway/httpgateway"
	"github.com/smallbiznis/chatdesk/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistryLooksUpCaseInsensitive(t *testing.T) {
	registry := NewRegistry(httpgateway.NewFactory(), nil)

	assert.True(t, registry.ProviderExists(" HTTP "))
	assert.False(t, registry.ProviderExists("baileys"))

	provider, err := registry.NewProvider("Http", domain.ProviderConfig{BaseURL: "http://localhost:3000"})
	require.NoError(t, err)
	assert.Equal(t, "http", provider.Type())

	_, err = registry.NewProvider("baileys", domain.ProviderConfig{})
	assert.True(t, errors.Is(err, domain.ErrProviderNotFound))

	var nilRegistry *Registry
	_, err = nilRegistry.NewProvider("http", domain.ProviderConfig{})
	assert.True(t, errors.Is(err, domain.ErrProviderNotFound))
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Type() string { return "mock" }

func (m *mockProvider) Send(ctx context.Context, to string, msg domain.OutboundMessage) (*domain.SendResult, error) {
	args := m.Called(ctx, to, msg)
	if res := args.Get(0); res != nil {
		return res.(*domain.SendResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) Status(ctx context.Context) (domain.ConnectionStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.ConnectionStatus), args.Error(1)
}

func TestRateLimitedProviderPassThroughWhenDisabled(t *testing.T) {
	limiter, err := ratelimit.NewSendLimiter(configWithoutRedis(), nil)
	require.NoError(t, err)

	next := &mockProvider{}
	next.On("Send", mock.Anything, "628", mock.MatchedBy(func(msg domain.OutboundMessage) bool {
		return msg.Content == "hi"
	})).Return(&domain.SendResult{ProviderMessageID: "x"}, nil).Once()
	next.On("Status", mock.Anything).Return(domain.StatusConnected, nil)

	provider := NewRateLimitedProvider(next, limiter, zap.NewNop())
	assert.Same(t, next, provider)

	res, err := provider.Send(context.Background(), "628", domain.OutboundMessage{Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "x", res.ProviderMessageID)

	status, err := provider.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConnected, status)
	next.AssertExpectations(t)
}

func configWithoutRedis() config.Config {
	return config.Config{}
}
