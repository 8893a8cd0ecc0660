package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
	auditdomain "github.com/smallbiznis/chatdesk/internal/audit/domain"
	"github.com/smallbiznis/chatdesk/internal/clock"
	"github.com/smallbiznis/chatdesk/internal/config"
	"github.com/smallbiznis/chatdesk/internal/conversation/domain"
	inboxdomain "github.com/smallbiznis/chatdesk/internal/inbox/domain"
	"github.com/smallbiznis/chatdesk/pkg/db"
	"github.com/smallbiznis/chatdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      *config.InboxConfigHolder
	Repo        domain.Repository
	AccountRepo accountdomain.Repository
	Inboxes     inboxdomain.Service
	Audit       auditdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	config      *config.InboxConfigHolder
	repo        domain.Repository
	accountRepo accountdomain.Repository
	inboxes     inboxdomain.Service
	audit       auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("conversation.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		config:      p.Config,
		repo:        p.Repo,
		accountRepo: p.AccountRepo,
		inboxes:     p.Inboxes,
		audit:       p.Audit,
	}
}

// GetOrCreate inserts first and falls back to the existing row on conflict,
// so concurrent first messages from one contact converge on one conversation.
func (s *Service) GetOrCreate(ctx context.Context, accountID snowflake.ID, contactIdentifier string, info domain.ContactInfo) (*domain.GetOrCreateResult, error) {
	contact := strings.TrimSpace(contactIdentifier)
	if contact == "" {
		return nil, domain.ErrInvalidContact
	}

	existing, err := s.repo.FindByContact(ctx, s.db, accountID, contact)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &domain.GetOrCreateResult{Conversation: existing}, nil
	}

	now := s.clock.Now()
	conversation := &domain.Conversation{
		ID:                s.genID.Generate(),
		AccountID:         accountID,
		ContactIdentifier: contact,
		ContactName:       strings.TrimSpace(info.Name),
		Status:            domain.StatusOpen,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if info.InboxID != nil {
		if _, err := s.inboxes.GetByID(ctx, accountID, *info.InboxID); err == nil {
			inboxID := *info.InboxID
			conversation.InboxID = &inboxID
		} else {
			s.log.Warn("ignoring inbox outside account scope",
				zap.String("account_id", accountID.String()),
				zap.String("inbox_id", info.InboxID.String()),
				zap.Error(err),
			)
		}
	}

	inserted, err := s.repo.InsertIgnoreConflict(ctx, s.db, conversation)
	if err != nil && !db.IsDuplicateKeyErr(err) {
		return nil, err
	}
	if !inserted {
		winner, err := s.repo.FindByContact(ctx, s.db, accountID, contact)
		if err != nil {
			return nil, err
		}
		if winner == nil {
			return nil, domain.ErrConflictUnresolved
		}
		s.log.Debug("conversation insert lost race",
			zap.String("account_id", accountID.String()),
			zap.String("conversation_id", winner.ID.String()),
		)
		return &domain.GetOrCreateResult{Conversation: winner}, nil
	}

	if conversation.InboxID != nil {
		s.autoAssign(ctx, conversation)
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       "conversation.create",
		ResourceType: "conversation",
		ResourceID:   conversation.ID.String(),
	})
	return &domain.GetOrCreateResult{Conversation: conversation, Created: true}, nil
}

func (s *Service) autoAssign(ctx context.Context, conversation *domain.Conversation) {
	agentID, err := s.inboxes.PickAgent(ctx, conversation.AccountID, *conversation.InboxID)
	if err != nil {
		s.log.Warn("auto assignment failed",
			zap.String("conversation_id", conversation.ID.String()),
			zap.Error(err),
		)
		return
	}
	if agentID == nil {
		return
	}
	if _, err := s.repo.Assign(ctx, s.db, conversation.AccountID, conversation.ID, agentID, s.clock.Now()); err != nil {
		s.log.Warn("failed to persist auto assignment",
			zap.String("conversation_id", conversation.ID.String()),
			zap.Error(err),
		)
		return
	}
	conversation.AssignedAgentID = agentID
}

// GetByID hides conversations of other accounts behind ErrNotFound.
func (s *Service) GetByID(ctx context.Context, accountID, id snowflake.ID) (*domain.Conversation, error) {
	conversation, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, domain.ErrNotFound
	}
	if conversation.AccountID != accountID {
		s.log.Warn("cross-account conversation access denied",
			zap.String("account_id", accountID.String()),
			zap.String("conversation_id", id.String()),
		)
		return nil, domain.ErrNotFound
	}
	return conversation, nil
}

func (s *Service) FindByContact(ctx context.Context, accountID snowflake.ID, contactIdentifier string) (*domain.Conversation, error) {
	conversation, err := s.repo.FindByContact(ctx, s.db, accountID, strings.TrimSpace(contactIdentifier))
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, domain.ErrNotFound
	}
	return conversation, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	filter := domain.ListFilter{
		AccountID:       req.AccountID,
		UnreadOnly:      req.UnreadOnly,
		InboxID:         req.InboxID,
		AssignedAgentID: req.AssignedAgentID,
		LabelID:         req.LabelID,
		Query:           req.Query,
		Limit:           s.config.Get().PageSize(req.PageSize),
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		parsed, err := domain.ParseStatus(status)
		if err != nil {
			return domain.ListResponse{}, err
		}
		filter.Status = parsed
	}

	boundary, err := pagination.ParseBoundary(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, domain.ErrInvalidPageToken
	}
	filter.Boundary = boundary

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(filter.Limit), func(item *domain.Conversation) string {
		token, err := pagination.EncodeCursor(pagination.NewCursor(int64(item.ID), item.LastMessageAt))
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > filter.Limit {
		items = items[:filter.Limit]
	}

	conversations := make([]domain.Conversation, 0, len(items))
	for _, item := range items {
		conversations = append(conversations, *item)
	}
	return domain.ListResponse{PageInfo: *pageInfo, Conversations: conversations}, nil
}

func (s *Service) UpdateStatus(ctx context.Context, accountID, id snowflake.ID, status domain.Status) (*domain.Conversation, error) {
	if _, err := domain.ParseStatus(string(status)); err != nil {
		return nil, err
	}
	current, err := s.GetByID(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}
	if _, err := s.repo.UpdateStatus(ctx, s.db, accountID, id, status, s.clock.Now()); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       "conversation.update_status",
		ResourceType: "conversation",
		ResourceID:   id.String(),
		Details:      map[string]any{"from": string(current.Status), "to": string(status)},
	})
	return s.GetByID(ctx, accountID, id)
}

func (s *Service) UpdateLastMessage(ctx context.Context, accountID, id snowflake.ID, preview string, at time.Time) error {
	if _, err := s.GetByID(ctx, accountID, id); err != nil {
		return err
	}
	truncated := domain.TruncatePreview(strings.TrimSpace(preview), s.config.Get().PreviewMaxLength)
	return s.repo.UpdateLastMessage(ctx, s.db, id, truncated, at.UTC(), s.clock.Now())
}

func (s *Service) Assign(ctx context.Context, accountID, id snowflake.ID, agentID *snowflake.ID) (*domain.Conversation, error) {
	if _, err := s.GetByID(ctx, accountID, id); err != nil {
		return nil, err
	}
	if agentID != nil {
		agent, err := s.accountRepo.FindAgent(ctx, s.db, accountID, *agentID)
		if err != nil {
			return nil, err
		}
		if agent == nil {
			s.log.Warn("cross-account agent assignment denied",
				zap.String("account_id", accountID.String()),
				zap.String("agent_id", agentID.String()),
			)
			return nil, domain.ErrAgentNotFound
		}
	}
	if _, err := s.repo.Assign(ctx, s.db, accountID, id, agentID, s.clock.Now()); err != nil {
		return nil, err
	}

	details := map[string]any{"agent_id": nil}
	if agentID != nil {
		details["agent_id"] = agentID.String()
	}
	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       "conversation.assign",
		ResourceType: "conversation",
		ResourceID:   id.String(),
		Details:      details,
	})
	return s.GetByID(ctx, accountID, id)
}

func (s *Service) SetInbox(ctx context.Context, accountID, id snowflake.ID, inboxID *snowflake.ID) (*domain.Conversation, error) {
	if _, err := s.GetByID(ctx, accountID, id); err != nil {
		return nil, err
	}
	if inboxID != nil {
		if _, err := s.inboxes.GetByID(ctx, accountID, *inboxID); err != nil {
			if errors.Is(err, inboxdomain.ErrNotFound) {
				return nil, domain.ErrInboxNotFound
			}
			return nil, err
		}
	}
	if _, err := s.repo.SetInbox(ctx, s.db, accountID, id, inboxID, s.clock.Now()); err != nil {
		return nil, err
	}

	details := map[string]any{"inbox_id": nil}
	if inboxID != nil {
		details["inbox_id"] = inboxID.String()
	}
	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       "conversation.set_inbox",
		ResourceType: "conversation",
		ResourceID:   id.String(),
		Details:      details,
	})
	return s.GetByID(ctx, accountID, id)
}

func (s *Service) CreateLabel(ctx context.Context, accountID snowflake.ID, title, color string) (*domain.Label, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.ErrInvalidLabel
	}
	label := &domain.Label{
		ID:        s.genID.Generate(),
		AccountID: accountID,
		Title:     strings.ToLower(title),
		Color:     strings.TrimSpace(color),
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertLabel(ctx, s.db, label); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrLabelTaken
		}
		return nil, err
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       "label.create",
		ResourceType: "label",
		ResourceID:   label.ID.String(),
		Details:      map[string]any{"title": label.Title},
	})
	return label, nil
}

func (s *Service) AddLabel(ctx context.Context, accountID, conversationID, labelID snowflake.ID) error {
	if _, err := s.GetByID(ctx, accountID, conversationID); err != nil {
		return err
	}
	label, err := s.repo.FindLabel(ctx, s.db, accountID, labelID)
	if err != nil {
		return err
	}
	if label == nil {
		return domain.ErrLabelNotFound
	}
	if err := s.repo.AttachLabel(ctx, s.db, &domain.ConversationLabel{
		ConversationID: conversationID,
		LabelID:        labelID,
		AccountID:      accountID,
		CreatedAt:      s.clock.Now(),
	}); err != nil {
		return err
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       "conversation.add_label",
		ResourceType: "conversation",
		ResourceID:   conversationID.String(),
		Details:      map[string]any{"label_id": labelID.String()},
	})
	return nil
}

func (s *Service) RemoveLabel(ctx context.Context, accountID, conversationID, labelID snowflake.ID) error {
	if _, err := s.GetByID(ctx, accountID, conversationID); err != nil {
		return err
	}
	rows, err := s.repo.DetachLabel(ctx, s.db, conversationID, labelID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrLabelNotFound
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       "conversation.remove_label",
		ResourceType: "conversation",
		ResourceID:   conversationID.String(),
		Details:      map[string]any{"label_id": labelID.String()},
	})
	return nil
}

func (s *Service) ListLabels(ctx context.Context, accountID, conversationID snowflake.ID) ([]domain.Label, error) {
	if _, err := s.GetByID(ctx, accountID, conversationID); err != nil {
		return nil, err
	}
	return s.repo.ListLabels(ctx, s.db, conversationID)
}
