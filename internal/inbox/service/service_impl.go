package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
	auditdomain "github.com/smallbiznis/chatdesk/internal/audit/domain"
	"github.com/smallbiznis/chatdesk/internal/clock"
	"github.com/smallbiznis/chatdesk/internal/inbox/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	AccountRepo accountdomain.Repository
	Audit       auditdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	accountRepo accountdomain.Repository
	audit       auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("inbox.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		accountRepo: p.AccountRepo,
		audit:       p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Inbox, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	account, err := s.accountRepo.FindByID(ctx, s.db, req.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountdomain.ErrNotFound
	}

	channel := strings.ToLower(strings.TrimSpace(req.ChannelType))
	if channel == "" {
		channel = domain.ChannelWhatsApp
	}

	now := s.clock.Now()
	inbox := &domain.Inbox{
		ID:            s.genID.Generate(),
		AccountID:     account.ID,
		Name:          name,
		ChannelType:   channel,
		GatewayToken:  strings.TrimSpace(req.GatewayToken),
		GatewayUserID: strings.TrimSpace(req.GatewayUserID),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, inbox); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    account.ID,
		Action:       "inbox.create",
		ResourceType: "inbox",
		ResourceID:   inbox.ID.String(),
		Details:      map[string]any{"name": name, "channel_type": channel},
	})
	return inbox, nil
}

func (s *Service) GetByID(ctx context.Context, accountID, id snowflake.ID) (*domain.Inbox, error) {
	inbox, err := s.repo.FindByID(ctx, s.db, accountID, id)
	if err != nil {
		return nil, err
	}
	if inbox == nil {
		return nil, domain.ErrNotFound
	}
	return inbox, nil
}

func (s *Service) FindByGatewayToken(ctx context.Context, accountID snowflake.ID, token string) (*domain.Inbox, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	return s.repo.FindByGatewayToken(ctx, s.db, accountID, token)
}

func (s *Service) ConfigureAutoAssignment(ctx context.Context, accountID, id snowflake.ID, cfg domain.AutoAssignment) error {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	rows, err := s.repo.UpdateAutoAssignment(ctx, s.db, accountID, id, datatypes.JSON(encoded), s.clock.Now())
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       "inbox.configure_auto_assignment",
		ResourceType: "inbox",
		ResourceID:   id.String(),
		Details:      map[string]any{"enabled": cfg.Enabled},
	})
	return nil
}

func (s *Service) AddMember(ctx context.Context, accountID, inboxID, agentID snowflake.ID) error {
	inbox, err := s.GetByID(ctx, accountID, inboxID)
	if err != nil {
		return err
	}
	if err := s.addMember(ctx, inbox, agentID); err != nil {
		return err
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       "inbox.add_member",
		ResourceType: "inbox",
		ResourceID:   inboxID.String(),
		Details:      map[string]any{"agent_id": agentID.String()},
	})
	return nil
}

func (s *Service) AddMembers(ctx context.Context, accountID, inboxID snowflake.ID, agentIDs []snowflake.ID) domain.BulkResult {
	result := domain.BulkResult{Failed: map[snowflake.ID]error{}}

	inbox, err := s.GetByID(ctx, accountID, inboxID)
	if err != nil {
		for _, agentID := range agentIDs {
			result.Failed[agentID] = err
		}
		return result
	}

	for _, agentID := range agentIDs {
		if err := s.addMember(ctx, inbox, agentID); err != nil {
			s.log.Warn("failed to add inbox member",
				zap.String("inbox_id", inboxID.String()),
				zap.String("agent_id", agentID.String()),
				zap.Error(err),
			)
			result.Failed[agentID] = err
			continue
		}
		result.Added = append(result.Added, agentID)
	}

	if len(result.Added) > 0 {
		added := make([]string, 0, len(result.Added))
		for _, id := range result.Added {
			added = append(added, id.String())
		}
		_ = s.audit.Record(ctx, auditdomain.RecordRequest{
			AccountID:    accountID,
			Action:       "inbox.add_members",
			ResourceType: "inbox",
			ResourceID:   inboxID.String(),
			Details:      map[string]any{"agent_ids": added, "failed": len(result.Failed)},
		})
	}
	return result
}

func (s *Service) addMember(ctx context.Context, inbox *domain.Inbox, agentID snowflake.ID) error {
	agent, err := s.accountRepo.FindAgent(ctx, s.db, inbox.AccountID, agentID)
	if err != nil {
		return err
	}
	if agent == nil {
		return domain.ErrAgentNotFound
	}

	_, err = s.repo.InsertMember(ctx, s.db, &domain.InboxMember{
		ID:        s.genID.Generate(),
		AccountID: inbox.AccountID,
		InboxID:   inbox.ID,
		AgentID:   agentID,
		CreatedAt: s.clock.Now(),
	})
	return err
}

func (s *Service) RemoveMember(ctx context.Context, accountID, inboxID, agentID snowflake.ID) error {
	if _, err := s.GetByID(ctx, accountID, inboxID); err != nil {
		return err
	}
	rows, err := s.repo.DeleteMember(ctx, s.db, inboxID, agentID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrMemberNotFound
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       "inbox.remove_member",
		ResourceType: "inbox",
		ResourceID:   inboxID.String(),
		Details:      map[string]any{"agent_id": agentID.String()},
	})
	return nil
}

func (s *Service) ListMemberIDs(ctx context.Context, accountID, inboxID snowflake.ID) ([]snowflake.ID, error) {
	if _, err := s.GetByID(ctx, accountID, inboxID); err != nil {
		return nil, err
	}
	return s.repo.ListMemberIDs(ctx, s.db, inboxID)
}

func (s *Service) PickAgent(ctx context.Context, accountID, inboxID snowflake.ID) (*snowflake.ID, error) {
	inbox, err := s.GetByID(ctx, accountID, inboxID)
	if err != nil {
		return nil, err
	}

	cfg, err := domain.DecodeAutoAssignment(inbox.AutoAssignment)
	if err != nil {
		s.log.Warn("ignoring malformed auto assignment config",
			zap.String("inbox_id", inboxID.String()),
			zap.Error(err),
		)
		return nil, nil
	}
	if !cfg.Enabled {
		return nil, nil
	}

	candidates, err := s.repo.ListActiveMemberIDs(ctx, s.db, inboxID)
	if err != nil {
		return nil, err
	}
	candidates = restrictTo(candidates, cfg.AgentIDs)
	if len(candidates) == 0 {
		return nil, nil
	}

	next := nextRoundRobin(candidates, inbox.LastAssignedAgentID)
	if err := s.repo.UpdateLastAssigned(ctx, s.db, inbox.ID, next); err != nil {
		s.log.Warn("failed to persist auto assignment cursor",
			zap.String("inbox_id", inboxID.String()),
			zap.Error(err),
		)
	}
	return &next, nil
}

func restrictTo(candidates []snowflake.ID, allowed []string) []snowflake.ID {
	if len(allowed) == 0 {
		return candidates
	}
	set := make(map[snowflake.ID]struct{}, len(allowed))
	for _, raw := range allowed {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		set[id] = struct{}{}
	}
	out := candidates[:0:0]
	for _, id := range candidates {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// nextRoundRobin returns the first candidate after last in ascending order,
// wrapping around.
func nextRoundRobin(candidates []snowflake.ID, last *snowflake.ID) snowflake.ID {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	if last == nil {
		return candidates[0]
	}
	for _, id := range candidates {
		if id > *last {
			return id
		}
	}
	return candidates[0]
}
