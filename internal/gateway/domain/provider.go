package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Provider is the transport to the messaging network. Implementations
// carry no business logic.
type Provider interface {
	Type() string
	Send(ctx context.Context, to string, msg OutboundMessage) (*SendResult, error)
	Status(ctx context.Context) (ConnectionStatus, error)
}

type ProviderFactory interface {
	Type() string
	NewProvider(cfg ProviderConfig) (Provider, error)
}

type ProviderConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type OutboundMessage struct {
	AccountID         snowflake.ID    `json:"-"`
	MessageID         snowflake.ID    `json:"-"`
	Type              string          `json:"type"`
	Content           string          `json:"content,omitempty"`
	MediaURL          string          `json:"media_url,omitempty"`
	ReplyToExternalID string          `json:"reply_to,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
}

type SendResult struct {
	ProviderMessageID string
	AcceptedAt        time.Time
}

type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusUnknown      ConnectionStatus = "unknown"
)

func ParseConnectionStatus(value string) ConnectionStatus {
	switch ConnectionStatus(value) {
	case StatusConnected, StatusConnecting, StatusDisconnected:
		return ConnectionStatus(value)
	default:
		return StatusUnknown
	}
}
