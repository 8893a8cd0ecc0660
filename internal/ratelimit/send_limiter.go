package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chatdesk/internal/config"
)

const keyGatewaySendAccount = "gateway:send:account:%s"

// SendLimiter caps outbound gateway sends per account.
type SendLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewSendLimiter(cfg config.Config, bucket *TokenBucket) (*SendLimiter, error) {
	if bucket == nil {
		return &SendLimiter{}, nil
	}
	if cfg.Gateway.SendRate <= 0 || cfg.Gateway.SendBurst <= 0 {
		return nil, errors.New("gateway send rate limit must be positive")
	}
	return &SendLimiter{
		bucket: bucket,
		rate:   cfg.Gateway.SendRate,
		burst:  cfg.Gateway.SendBurst,
	}, nil
}

func (l *SendLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow consumes one send token for the account. Disabled limiters allow
// everything.
func (l *SendLimiter) Allow(ctx context.Context, accountID snowflake.ID) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyGatewaySendAccount, strconv.FormatInt(accountID.Int64(), 10))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
