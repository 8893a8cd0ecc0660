package gateway

import (
	"context"
	"fmt"

	"github.com/smallbiznis/chatdesk/internal/gateway/domain"
	"github.com/smallbiznis/chatdesk/internal/ratelimit"
	"go.uber.org/zap"
)

// RateLimitedProvider spends a per-account token before every send.
type RateLimitedProvider struct {
	next    domain.Provider
	limiter *ratelimit.SendLimiter
	log     *zap.Logger
}

func NewRateLimitedProvider(next domain.Provider, limiter *ratelimit.SendLimiter, log *zap.Logger) domain.Provider {
	if !limiter.Enabled() {
		return next
	}
	return &RateLimitedProvider{next: next, limiter: limiter, log: log}
}

func (p *RateLimitedProvider) Type() string {
	return p.next.Type()
}

func (p *RateLimitedProvider) Send(ctx context.Context, to string, msg domain.OutboundMessage) (*domain.SendResult, error) {
	res, err := p.limiter.Allow(ctx, msg.AccountID)
	if err != nil {
		// limiter outages do not block sends
		p.log.Warn("send limiter unavailable", zap.String("account_id", msg.AccountID.String()), zap.Error(err))
	} else if !res.Allowed {
		return nil, &domain.SendError{
			Provider: p.next.Type(),
			Kind:     domain.ErrRateLimited,
			Cause:    fmt.Errorf("retry after %s", res.RetryAfter),
		}
	}
	return p.next.Send(ctx, to, msg)
}

func (p *RateLimitedProvider) Status(ctx context.Context) (domain.ConnectionStatus, error) {
	return p.next.Status(ctx)
}
