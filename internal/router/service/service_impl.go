package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
	"github.com/smallbiznis/chatdesk/internal/cache"
	"github.com/smallbiznis/chatdesk/internal/config"
	conversationdomain "github.com/smallbiznis/chatdesk/internal/conversation/domain"
	inboxdomain "github.com/smallbiznis/chatdesk/internal/inbox/domain"
	"github.com/smallbiznis/chatdesk/internal/observability/metrics"
	"github.com/smallbiznis/chatdesk/internal/router/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log           *zap.Logger
	Config        *config.InboxConfigHolder
	Accounts      accountdomain.Service
	Conversations conversationdomain.Service
	Inboxes       inboxdomain.Service
	Cache         cache.AccountResolverCache `optional:"true"`
	Metrics       *metrics.Metrics           `optional:"true"`
}

type Service struct {
	log           *zap.Logger
	config        *config.InboxConfigHolder
	accounts      accountdomain.Service
	conversations conversationdomain.Service
	inboxes       inboxdomain.Service
	cache         cache.AccountResolverCache
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:           p.Log.Named("router.service"),
		config:        p.Config,
		accounts:      p.Accounts,
		conversations: p.Conversations,
		inboxes:       p.Inboxes,
		cache:         p.Cache,
		metrics:       p.Metrics,
	}
}

func (s *Service) ResolveAccount(ctx context.Context, gatewayToken string) (*accountdomain.AccountWithTenant, error) {
	gatewayToken = strings.TrimSpace(gatewayToken)
	if gatewayToken == "" {
		return nil, nil
	}
	if s.cache != nil {
		if cached, ok := s.cache.GetAccount(gatewayToken); ok {
			return cached, nil
		}
	}

	found, err := s.accounts.GetByGatewayToken(ctx, gatewayToken)
	if err != nil {
		if errors.Is(err, accountdomain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !found.Account.IsActive() || !found.Tenant.IsActive() {
		return nil, nil
	}

	if s.cache != nil {
		s.cache.SetAccount(gatewayToken, found, s.config.Get().ResolverCacheTTL)
	}
	return found, nil
}

func (s *Service) ValidateTenantContext(account *accountdomain.AccountWithTenant, expectedTenantID *snowflake.ID) bool {
	if account == nil || !account.Tenant.IsActive() {
		return false
	}
	if expectedTenantID != nil && *expectedTenantID != account.Account.TenantID {
		return false
	}
	return true
}

func (s *Service) RouteEvent(ctx context.Context, gatewayToken string, event domain.Event, expectedTenantID *snowflake.ID) (domain.RouteResult, error) {
	result, err := s.route(ctx, gatewayToken, event, expectedTenantID)
	if err == nil {
		s.metrics.RecordEventRouted(ctx, event.Type, domain.ResultLabel(result))
	}
	return result, err
}

func (s *Service) route(ctx context.Context, gatewayToken string, event domain.Event, expectedTenantID *snowflake.ID) (domain.RouteResult, error) {
	account, err := s.ResolveAccount(ctx, gatewayToken)
	if err != nil {
		return domain.RouteResult{}, err
	}
	if account == nil {
		return domain.RouteResult{Reason: domain.ReasonAccountNotFound}, nil
	}
	if !s.ValidateTenantContext(account, expectedTenantID) {
		s.log.Warn("event rejected for tenant context",
			zap.String("account_id", account.Account.ID.String()),
			zap.String("tenant_id", account.Account.TenantID.String()),
			zap.Stringp("expected_tenant_id", idString(expectedTenantID)),
		)
		return domain.RouteResult{Account: account, Reason: domain.ReasonInvalidTenantContext}, nil
	}

	accountID := account.Account.ID
	conversation, err := s.referencedConversation(ctx, accountID, event)
	if err != nil {
		return domain.RouteResult{}, err
	}

	audience, err := s.ComputeAudience(ctx, accountID, conversation, event.InboxID)
	if err != nil {
		return domain.RouteResult{}, err
	}

	return domain.RouteResult{
		Routed:       true,
		Account:      account,
		Conversation: conversation,
		Audience:     audience,
	}, nil
}

func (s *Service) referencedConversation(ctx context.Context, accountID snowflake.ID, event domain.Event) (*conversationdomain.Conversation, error) {
	var (
		conversation *conversationdomain.Conversation
		err          error
	)
	switch {
	case event.ConversationID != nil:
		conversation, err = s.conversations.GetByID(ctx, accountID, *event.ConversationID)
	case strings.TrimSpace(event.ContactIdentifier) != "":
		conversation, err = s.conversations.FindByContact(ctx, accountID, event.ContactIdentifier)
	default:
		return nil, nil
	}
	if errors.Is(err, conversationdomain.ErrNotFound) {
		return nil, nil
	}
	return conversation, err
}

// ComputeAudience is the assigned agent plus the inbox members. Only when
// the conversation has neither does it fall back to every active agent with
// an audience availability.
func (s *Service) ComputeAudience(ctx context.Context, accountID snowflake.ID, conversation *conversationdomain.Conversation, inboxID *snowflake.ID) ([]snowflake.ID, error) {
	var audience []snowflake.ID
	var assigned *snowflake.ID

	if conversation != nil {
		assigned = conversation.AssignedAgentID
		if conversation.InboxID != nil {
			inboxID = conversation.InboxID
		}
	}
	if assigned != nil {
		audience = append(audience, *assigned)
	}
	if inboxID != nil {
		members, err := s.inboxes.ListMemberIDs(ctx, accountID, *inboxID)
		switch {
		case errors.Is(err, inboxdomain.ErrNotFound):
			inboxID = nil
		case err != nil:
			return nil, err
		default:
			audience = append(audience, members...)
		}
	}

	if assigned == nil && inboxID == nil {
		agents, err := s.accounts.ListActiveByAvailability(ctx, accountID, s.audienceAvailabilities())
		if err != nil {
			return nil, err
		}
		for _, agent := range agents {
			audience = append(audience, agent.ID)
		}
	}

	return dedupeSorted(audience), nil
}

func (s *Service) audienceAvailabilities() []accountdomain.Availability {
	configured := s.config.Get().AudienceAvailability
	out := make([]accountdomain.Availability, 0, len(configured))
	for _, value := range configured {
		availability, err := accountdomain.ParseAvailability(value)
		if err != nil {
			s.log.Warn("ignoring unknown audience availability", zap.String("value", value))
			continue
		}
		out = append(out, availability)
	}
	if len(out) == 0 {
		return []accountdomain.Availability{accountdomain.AvailabilityOnline, accountdomain.AvailabilityBusy}
	}
	return out
}

func dedupeSorted(ids []snowflake.ID) []snowflake.ID {
	if len(ids) == 0 {
		return []snowflake.ID{}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func idString(id *snowflake.ID) *string {
	if id == nil {
		return nil
	}
	value := id.String()
	return &value
}
