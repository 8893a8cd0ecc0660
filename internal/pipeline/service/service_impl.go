package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chatdesk/internal/clock"
	conversationdomain "github.com/smallbiznis/chatdesk/internal/conversation/domain"
	gatewaydomain "github.com/smallbiznis/chatdesk/internal/gateway/domain"
	inboxdomain "github.com/smallbiznis/chatdesk/internal/inbox/domain"
	messagedomain "github.com/smallbiznis/chatdesk/internal/message/domain"
	"github.com/smallbiznis/chatdesk/internal/notify"
	"github.com/smallbiznis/chatdesk/internal/observability/metrics"
	"github.com/smallbiznis/chatdesk/internal/pipeline/domain"
	routerdomain "github.com/smallbiznis/chatdesk/internal/router/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	notifyMessageCreated = "message.created"
	notifyMessageStatus  = "message.status"
	notifyReaction       = "message.reaction"
)

type Params struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	Router        routerdomain.Service
	Conversations conversationdomain.Service
	Messages      messagedomain.Service
	Inboxes       inboxdomain.Service
	Provider      gatewaydomain.Provider
	Notifier      notify.Notifier
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	log           *zap.Logger
	clock         clock.Clock
	router        routerdomain.Service
	conversations conversationdomain.Service
	messages      messagedomain.Service
	inboxes       inboxdomain.Service
	provider      gatewaydomain.Provider
	notifier      notify.Notifier
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:           p.Log.Named("pipeline.service"),
		clock:         p.Clock,
		router:        p.Router,
		conversations: p.Conversations,
		messages:      p.Messages,
		inboxes:       p.Inboxes,
		provider:      p.Provider,
		notifier:      p.Notifier,
		metrics:       p.Metrics,
	}
}

func (s *Service) HandleInbound(ctx context.Context, gatewayToken string, event domain.WebhookEvent, expectedTenantID *snowflake.ID) (*domain.Outcome, error) {
	switch event.Type {
	case domain.EventMessage, domain.EventStatus, domain.EventReaction:
	default:
		return nil, domain.ErrUnsupportedEvent
	}
	contact := strings.TrimSpace(event.ConversationReference)
	if contact == "" {
		return nil, domain.ErrMissingReference
	}

	route, err := s.router.RouteEvent(ctx, gatewayToken, routerdomain.Event{
		Type:              string(event.Type),
		ContactIdentifier: contact,
	}, expectedTenantID)
	if err != nil {
		return nil, err
	}
	if !route.Routed {
		return &domain.Outcome{Reason: route.Reason, Audience: []snowflake.ID{}}, nil
	}

	accountID := route.Account.Account.ID
	switch event.Type {
	case domain.EventStatus:
		return s.handleStatus(ctx, accountID, contact, event)
	case domain.EventReaction:
		return s.handleReaction(ctx, accountID, contact, event)
	default:
		return s.handleMessage(ctx, gatewayToken, accountID, contact, event)
	}
}

func (s *Service) handleMessage(ctx context.Context, gatewayToken string, accountID snowflake.ID, contact string, event domain.WebhookEvent) (*domain.Outcome, error) {
	req, err := appendRequestFromEvent(event)
	if err != nil {
		return nil, err
	}

	inbox, err := s.inboxes.FindByGatewayToken(ctx, accountID, gatewayToken)
	if err != nil {
		return nil, err
	}
	var inboxID *snowflake.ID
	if inbox != nil {
		inboxID = &inbox.ID
	}

	created, err := s.conversations.GetOrCreate(ctx, accountID, contact, conversationdomain.ContactInfo{
		Name:    event.ContactName,
		InboxID: inboxID,
	})
	if err != nil {
		return nil, err
	}
	conversation := created.Conversation

	appended, err := s.messages.Append(ctx, accountID, conversation.ID, req)
	if err != nil {
		return nil, err
	}
	outcome := &domain.Outcome{
		Routed:         true,
		ConversationID: conversation.ID,
		MessageID:      appended.Message.ID,
		Duplicate:      appended.Duplicate,
		Audience:       []snowflake.ID{},
	}
	if appended.Duplicate {
		return outcome, nil
	}

	if req.Direction == messagedomain.DirectionIncoming {
		conversation = s.reopen(ctx, accountID, conversation)
	}

	audience, err := s.router.ComputeAudience(ctx, accountID, conversation, inboxID)
	if err != nil {
		return nil, err
	}
	outcome.Audience = audience
	s.notify(ctx, notifyMessageCreated, accountID, conversation.ID, appended.Message.ID, audience)
	return outcome, nil
}

// reopen moves a resolved or snoozed conversation back to open when the
// contact writes again.
func (s *Service) reopen(ctx context.Context, accountID snowflake.ID, conversation *conversationdomain.Conversation) *conversationdomain.Conversation {
	if conversation.Status != conversationdomain.StatusResolved && conversation.Status != conversationdomain.StatusSnoozed {
		return conversation
	}
	updated, err := s.conversations.UpdateStatus(ctx, accountID, conversation.ID, conversationdomain.StatusOpen)
	if err != nil {
		s.log.Warn("failed to reopen conversation",
			zap.String("conversation_id", conversation.ID.String()),
			zap.Error(err),
		)
		return conversation
	}
	return updated
}

func (s *Service) handleStatus(ctx context.Context, accountID snowflake.ID, contact string, event domain.WebhookEvent) (*domain.Outcome, error) {
	externalID := strings.TrimSpace(event.ExternalMessageID)
	if externalID == "" {
		return nil, domain.ErrMissingMessageID
	}
	status, err := messagedomain.ParseStatus(event.Status)
	if err != nil {
		return nil, err
	}

	conversation, outcome, err := s.existingConversation(ctx, accountID, contact)
	if conversation == nil || err != nil {
		return outcome, err
	}

	message, err := s.messages.UpdateStatusByExternalID(ctx, accountID, conversation.ID, externalID, status)
	if errors.Is(err, messagedomain.ErrNotFound) {
		outcome.Reason = domain.ReasonMessageNotFound
		return outcome, nil
	}
	if err != nil {
		return nil, err
	}
	outcome.MessageID = message.ID
	return s.finishWithAudience(ctx, notifyMessageStatus, accountID, conversation, outcome)
}

func (s *Service) handleReaction(ctx context.Context, accountID snowflake.ID, contact string, event domain.WebhookEvent) (*domain.Outcome, error) {
	target := strings.TrimSpace(event.ExternalMessageID)
	if target == "" {
		return nil, domain.ErrMissingMessageID
	}

	conversation, outcome, err := s.existingConversation(ctx, accountID, contact)
	if conversation == nil || err != nil {
		return outcome, err
	}

	message, err := s.messages.GetByExternalOrInternalID(ctx, accountID, conversation.ID, target)
	if errors.Is(err, messagedomain.ErrNotFound) {
		outcome.Reason = domain.ReasonMessageNotFound
		return outcome, nil
	}
	if err != nil {
		return nil, err
	}

	reactor := strings.TrimSpace(event.Reactor)
	if reactor == "" {
		reactor = contact
	}
	if _, err := s.messages.UpsertReaction(ctx, accountID, message.ID, reactor, event.Emoji); err != nil {
		return nil, err
	}
	outcome.MessageID = message.ID
	return s.finishWithAudience(ctx, notifyReaction, accountID, conversation, outcome)
}

func (s *Service) existingConversation(ctx context.Context, accountID snowflake.ID, contact string) (*conversationdomain.Conversation, *domain.Outcome, error) {
	outcome := &domain.Outcome{Routed: true, Audience: []snowflake.ID{}}
	conversation, err := s.conversations.FindByContact(ctx, accountID, contact)
	if errors.Is(err, conversationdomain.ErrNotFound) {
		outcome.Reason = domain.ReasonConversationNotFound
		return nil, outcome, nil
	}
	if err != nil {
		return nil, nil, err
	}
	outcome.ConversationID = conversation.ID
	return conversation, outcome, nil
}

func (s *Service) finishWithAudience(ctx context.Context, event string, accountID snowflake.ID, conversation *conversationdomain.Conversation, outcome *domain.Outcome) (*domain.Outcome, error) {
	audience, err := s.router.ComputeAudience(ctx, accountID, conversation, nil)
	if err != nil {
		return nil, err
	}
	outcome.Audience = audience
	s.notify(ctx, event, accountID, conversation.ID, outcome.MessageID, audience)
	return outcome, nil
}

func (s *Service) notify(ctx context.Context, event string, accountID, conversationID, messageID snowflake.ID, audience []snowflake.ID) {
	if s.notifier == nil || len(audience) == 0 {
		return
	}
	err := s.notifier.Notify(ctx, notify.Notification{
		Event:          event,
		AccountID:      accountID,
		ConversationID: conversationID,
		MessageID:      messageID,
		Audience:       audience,
		OccurredAt:     s.clock.Now(),
	})
	if err != nil {
		s.log.Warn("notification dropped",
			zap.String("event", event),
			zap.String("conversation_id", conversationID.String()),
			zap.Error(err),
		)
	}
}

// SendOutbound stores the message as pending before the provider is called.
// Provider failures only mark the message failed.
func (s *Service) SendOutbound(ctx context.Context, accountID, conversationID snowflake.ID, req domain.SendRequest) (*domain.SendOutcome, error) {
	conversation, err := s.conversations.GetByID(ctx, accountID, conversationID)
	if err != nil {
		return nil, err
	}
	messageType, err := parseMessageType(req.Type)
	if err != nil {
		return nil, err
	}

	appended, err := s.messages.Append(ctx, accountID, conversationID, messagedomain.AppendRequest{
		Direction:     messagedomain.DirectionOutgoing,
		Type:          messageType,
		Content:       req.Content,
		MediaURL:      req.MediaURL,
		MediaMimeType: req.MediaMimeType,
		MediaFileName: req.MediaFileName,
		ReplyTo:       req.ReplyTo,
		SenderAgentID: req.SenderAgentID,
		Payload:       req.Payload,
		IsPrivateNote: req.IsPrivateNote,
	})
	if err != nil {
		return nil, err
	}
	message := appended.Message
	if message.IsPrivateNote {
		return &domain.SendOutcome{Message: message}, nil
	}

	outbound := gatewaydomain.OutboundMessage{
		AccountID: accountID,
		MessageID: message.ID,
		Type:      string(message.Type),
		Content:   message.Content,
		MediaURL:  message.MediaURL,
	}
	if message.ReplyToExternalID != nil {
		outbound.ReplyToExternalID = *message.ReplyToExternalID
	}
	if message.Payload != nil {
		if raw, err := json.Marshal(message.Payload); err == nil {
			outbound.Payload = raw
		}
	}

	sent, sendErr := s.provider.Send(ctx, conversation.ContactIdentifier, outbound)
	if sendErr != nil {
		reason := gatewaydomain.FailureReason(sendErr)
		s.metrics.RecordSendFailure(ctx, s.provider.Type(), reason)
		s.log.Warn("gateway send failed",
			zap.String("message_id", message.ID.String()),
			zap.String("reason", reason),
			zap.Error(sendErr),
		)
		failed, err := s.messages.MarkFailed(ctx, accountID, message.ID, reason)
		if err != nil {
			return nil, err
		}
		return &domain.SendOutcome{Message: failed, FailureReason: reason}, nil
	}

	marked, err := s.messages.MarkSent(ctx, accountID, message.ID, sent.ProviderMessageID)
	if err != nil {
		return nil, err
	}
	return &domain.SendOutcome{Message: marked}, nil
}

// parseMessageType leaves a blank type empty so the ledger can infer it from
// the payload kind.
func parseMessageType(value string) (messagedomain.Type, error) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	return messagedomain.ParseType(value)
}

func appendRequestFromEvent(event domain.WebhookEvent) (messagedomain.AppendRequest, error) {
	direction := messagedomain.DirectionIncoming
	if strings.TrimSpace(event.Direction) != "" {
		parsed, err := messagedomain.ParseDirection(event.Direction)
		if err != nil {
			return messagedomain.AppendRequest{}, err
		}
		direction = parsed
	}
	messageType, err := parseMessageType(event.MessageType)
	if err != nil {
		return messagedomain.AppendRequest{}, err
	}

	req := messagedomain.AppendRequest{
		ExternalMessageID: strings.TrimSpace(event.ExternalMessageID),
		Direction:         direction,
		Type:              messageType,
		Content:           event.Content,
		ReplyTo:           event.ReplyTo,
		Payload:           event.Payload,
		Timestamp:         event.Timestamp,
	}
	if strings.TrimSpace(event.SenderType) != "" {
		senderType, err := messagedomain.ParseSenderType(event.SenderType)
		if err != nil {
			return messagedomain.AppendRequest{}, err
		}
		req.SenderType = senderType
	}
	if direction == messagedomain.DirectionOutgoing {
		// echoed from the phone; the gateway already sent it
		req.Status = messagedomain.StatusSent
	}
	if event.Media != nil {
		req.MediaURL = event.Media.URL
		req.MediaMimeType = event.Media.MimeType
		req.MediaFileName = event.Media.FileName
	}
	if event.Participant != nil {
		req.ParticipantIdentifier = event.Participant.Identifier
		req.ParticipantName = event.Participant.Name
	}
	return req, nil
}
