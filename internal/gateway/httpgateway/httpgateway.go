// Package httpgateway talks to a WhatsApp gateway sidecar over JSON/HTTP.
package httpgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/chatdesk/internal/gateway/domain"
)

const (
	providerType   = "http"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Type() string {
	return providerType
}

func (f *Factory) NewProvider(cfg domain.ProviderConfig) (domain.Provider, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, domain.ErrInvalidConfig
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Provider{
		baseURL: strings.TrimRight(base.String(), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type Provider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type sendRequest struct {
	To string `json:"to"`
	domain.OutboundMessage
}

type sendResponse struct {
	ID         string    `json:"id"`
	AcceptedAt time.Time `json:"accepted_at"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (p *Provider) Type() string {
	return providerType
}

func (p *Provider) Send(ctx context.Context, to string, msg domain.OutboundMessage) (*domain.SendResult, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, &domain.SendError{Provider: providerType, Kind: domain.ErrInvalidRecipient}
	}

	body, err := json.Marshal(sendRequest{To: to, OutboundMessage: msg})
	if err != nil {
		return nil, fmt.Errorf("encode send request: %w", err)
	}

	var out sendResponse
	if err := p.do(ctx, http.MethodPost, "/messages", body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, &domain.SendError{Provider: providerType, Kind: domain.ErrProviderUnavailable, Cause: errors.New("empty message id")}
	}
	return &domain.SendResult{ProviderMessageID: out.ID, AcceptedAt: out.AcceptedAt}, nil
}

func (p *Provider) Status(ctx context.Context) (domain.ConnectionStatus, error) {
	var out statusResponse
	if err := p.do(ctx, http.MethodGet, "/status", nil, &out); err != nil {
		return domain.StatusUnknown, err
	}
	return domain.ParseConnectionStatus(strings.ToLower(strings.TrimSpace(out.Status))), nil
}

func (p *Provider) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return classifyStatus(resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.SendError{Provider: providerType, Kind: domain.ErrProviderUnavailable, Cause: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func classifyTransportError(err error) error {
	kind := domain.ErrProviderUnavailable
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = domain.ErrProviderTimeout
	}
	return &domain.SendError{Provider: providerType, Kind: kind, Cause: err}
}

func classifyStatus(code int, body []byte) error {
	var kind error
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = domain.ErrInvalidCredential
	case code == http.StatusTooManyRequests:
		kind = domain.ErrRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		kind = domain.ErrProviderTimeout
	case code >= 500:
		kind = domain.ErrProviderUnavailable
	default:
		kind = domain.ErrRejected
	}
	sendErr := &domain.SendError{Provider: providerType, Kind: kind, StatusCode: code}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		sendErr.Cause = errors.New(msg)
	}
	return sendErr
}
