// Package notify fans routed events out to the agents that should see them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPattern = "chatdesk:account:%s:events"

type Notification struct {
	Event          string         `json:"event"`
	AccountID      snowflake.ID   `json:"account_id"`
	ConversationID snowflake.ID   `json:"conversation_id"`
	MessageID      snowflake.ID   `json:"message_id,omitempty"`
	Audience       []snowflake.ID `json:"audience"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Channel is the pub/sub channel an account's events are published on.
func Channel(accountID snowflake.ID) string {
	return fmt.Sprintf(channelPattern, accountID.String())
}

type Noop struct{}

func (Noop) Notify(context.Context, Notification) error { return nil }

// RedisPublisher publishes each notification as JSON on the account channel.
type RedisPublisher struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisPublisher(client *redis.Client, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, log: log.Named("notify")}
}

func (p *RedisPublisher) Notify(ctx context.Context, n Notification) error {
	if len(n.Audience) == 0 {
		return nil
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(n.AccountID), payload).Err(); err != nil {
		p.log.Warn("publish notification failed",
			zap.String("account_id", n.AccountID.String()),
			zap.String("event", n.Event),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// New picks the redis publisher when a client is configured.
func New(client *redis.Client, log *zap.Logger) Notifier {
	if client == nil {
		return Noop{}
	}
	return NewRedisPublisher(client, log)
}
