package testkit

import (
	"context"
	"fmt"
	"sync"

	gatewaydomain "github.com/smallbiznis/chatdesk/internal/gateway/domain"
	"github.com/smallbiznis/chatdesk/internal/notify"
)

// StubProvider accepts every send unless Err is set.
type StubProvider struct {
	mu   sync.Mutex
	Err  error
	Sent []gatewaydomain.OutboundMessage
}

func (p *StubProvider) Type() string { return "stub" }

func (p *StubProvider) Send(_ context.Context, _ string, msg gatewaydomain.OutboundMessage) (*gatewaydomain.SendResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	p.Sent = append(p.Sent, msg)
	return &gatewaydomain.SendResult{ProviderMessageID: fmt.Sprintf("wamid.%d", len(p.Sent))}, nil
}

func (p *StubProvider) Status(context.Context) (gatewaydomain.ConnectionStatus, error) {
	return gatewaydomain.StatusConnected, nil
}

// RecordingNotifier keeps every notification it receives.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *RecordingNotifier) Notify(_ context.Context, notification notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *RecordingNotifier) Sent() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notification(nil), n.sent...)
}
