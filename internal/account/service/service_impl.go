package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/chatdesk/internal/accountcontext"
	"github.com/smallbiznis/chatdesk/internal/account/domain"
	auditdomain "github.com/smallbiznis/chatdesk/internal/audit/domain"
	"github.com/smallbiznis/chatdesk/internal/cache"
	"github.com/smallbiznis/chatdesk/internal/clock"
	tenantdomain "github.com/smallbiznis/chatdesk/internal/tenant/domain"
	"github.com/smallbiznis/chatdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultSessionTTL = 12 * time.Hour

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	TenantRepo tenantdomain.Repository
	Audit      auditdomain.Service
	Cache      cache.AccountResolverCache `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	tenantRepo tenantdomain.Repository
	audit      auditdomain.Service
	cache      cache.AccountResolverCache
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("account.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		tenantRepo: p.TenantRepo,
		audit:      p.Audit,
		cache:      p.Cache,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, *domain.Agent, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, nil, domain.ErrInvalidName
	}
	token := strings.TrimSpace(req.GatewayToken)
	if token == "" {
		return nil, nil, domain.ErrInvalidToken
	}
	ownerEmail := normalizeEmail(req.OwnerEmail)
	if ownerEmail == "" {
		return nil, nil, domain.ErrInvalidEmail
	}

	tenant, err := s.tenantRepo.FindByID(ctx, s.db, req.TenantID)
	if err != nil {
		return nil, nil, err
	}
	if tenant == nil {
		return nil, nil, domain.ErrTenantNotFound
	}
	if !tenant.IsActive() {
		return nil, nil, domain.ErrTenantInactive
	}

	now := s.clock.Now()
	account := &domain.Account{
		ID:           s.genID.Generate(),
		TenantID:     tenant.ID,
		Name:         name,
		OwnerUserID:  req.OwnerUserID,
		GatewayToken: token,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	ownerName := strings.TrimSpace(req.OwnerName)
	if ownerName == "" {
		ownerName = ownerEmail
	}
	owner := &domain.Agent{
		ID:           s.genID.Generate(),
		AccountID:    account.ID,
		Name:         ownerName,
		Email:        ownerEmail,
		Role:         domain.RoleOwner,
		Status:       domain.AgentStatusActive,
		Availability: domain.AvailabilityOffline,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, account); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrGatewayTokenTaken
			}
			return err
		}
		return s.repo.InsertAgent(ctx, tx, owner)
	})
	if err != nil {
		return nil, nil, err
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    account.ID,
		AgentID:      &owner.ID,
		Action:       "account.create",
		ResourceType: "account",
		ResourceID:   account.ID.String(),
		Details: map[string]any{
			"tenant_id":     tenant.ID.String(),
			"gateway_token": token,
		},
	})
	return account, owner, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Account, error) {
	account, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	return account, nil
}

func (s *Service) GetByGatewayToken(ctx context.Context, token string) (*domain.AccountWithTenant, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrNotFound
	}
	found, err := s.repo.FindByGatewayToken(ctx, s.db, token)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return found, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, status domain.Status) (*domain.Account, error) {
	switch status {
	case domain.StatusActive, domain.StatusInactive, domain.StatusSuspended:
	default:
		return nil, domain.ErrInvalidStatus
	}

	rows, err := s.repo.UpdateStatus(ctx, s.db, id, status, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, domain.ErrNotFound
	}
	if s.cache != nil {
		s.cache.InvalidateAccount(id)
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    id,
		Action:       "account.update_status",
		ResourceType: "account",
		ResourceID:   id.String(),
		Details:      map[string]any{"status": string(status)},
	})
	return s.GetByID(ctx, id)
}

func (s *Service) CreateAgent(ctx context.Context, req domain.CreateAgentRequest) (*domain.Agent, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, domain.ErrInvalidEmail
	}
	role, err := domain.ParseRole(string(req.Role))
	if err != nil {
		return nil, err
	}
	if _, err := s.GetByID(ctx, req.AccountID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	agent := &domain.Agent{
		ID:           s.genID.Generate(),
		AccountID:    req.AccountID,
		Name:         name,
		Email:        email,
		Role:         role,
		Status:       domain.AgentStatusActive,
		Availability: domain.AvailabilityOffline,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.InsertAgent(ctx, s.db, agent); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAgentEmailTaken
		}
		return nil, err
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    req.AccountID,
		Action:       "agent.create",
		ResourceType: "agent",
		ResourceID:   agent.ID.String(),
		Details:      map[string]any{"role": string(role)},
	})
	return agent, nil
}

func (s *Service) GetAgent(ctx context.Context, accountID, agentID snowflake.ID) (*domain.Agent, error) {
	agent, err := s.repo.FindAgent(ctx, s.db, accountID, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, domain.ErrAgentNotFound
	}
	return agent, nil
}

func (s *Service) ListActiveByAvailability(ctx context.Context, accountID snowflake.ID, availabilities []domain.Availability) ([]domain.Agent, error) {
	return s.repo.ListAgents(ctx, s.db, domain.AgentFilter{
		AccountID:      accountID,
		Status:         domain.AgentStatusActive,
		Availabilities: availabilities,
	})
}

func (s *Service) UpdateAvailability(ctx context.Context, accountID, agentID snowflake.ID, availability domain.Availability) error {
	if _, err := domain.ParseAvailability(string(availability)); err != nil {
		return err
	}
	rows, err := s.repo.UpdateAvailability(ctx, s.db, accountID, agentID, availability, s.clock.Now())
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrAgentNotFound
	}
	return nil
}

func (s *Service) StartSession(ctx context.Context, accountID, agentID snowflake.ID, ttl time.Duration) (*domain.SessionToken, error) {
	if _, err := s.GetAgent(ctx, accountID, agentID); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	token := uuid.NewString()
	now := s.clock.Now()
	session := domain.AgentSession{
		ID:        s.genID.Generate(),
		AccountID: accountID,
		AgentID:   agentID,
		TokenHash: hashToken(token),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.repo.InsertSession(ctx, s.db, &session); err != nil {
		return nil, err
	}
	return &domain.SessionToken{Session: session, Token: token}, nil
}

func (s *Service) CreateCustomRole(ctx context.Context, accountID snowflake.ID, name string, permissions []string) (*domain.CustomRole, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if _, err := s.GetByID(ctx, accountID); err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(permissions)
	if err != nil {
		return nil, err
	}
	role := &domain.CustomRole{
		ID:          s.genID.Generate(),
		AccountID:   accountID,
		Name:        name,
		Permissions: datatypes.JSON(encoded),
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.InsertCustomRole(ctx, s.db, role); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrRoleNameTaken
		}
		return nil, err
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       "custom_role.create",
		ResourceType: "custom_role",
		ResourceID:   role.ID.String(),
	})
	return role, nil
}

func (s *Service) Invite(ctx context.Context, accountID snowflake.ID, email string, role domain.Role) (*domain.Invitation, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, domain.ErrInvalidEmail
	}
	parsed, err := domain.ParseRole(string(role))
	if err != nil {
		return nil, err
	}
	if parsed == domain.RoleOwner {
		return nil, domain.ErrInvalidRole
	}
	if _, err := s.GetByID(ctx, accountID); err != nil {
		return nil, err
	}

	invitation := &domain.Invitation{
		ID:        s.genID.Generate(),
		AccountID: accountID,
		Email:     email,
		Role:      parsed,
		Status:    domain.InvitationPending,
		CreatedAt: s.clock.Now(),
	}
	invitation.InvitedBy = accountcontext.AgentIDFromContext(ctx)
	if err := s.repo.InsertInvitation(ctx, s.db, invitation); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       "invitation.create",
		ResourceType: "invitation",
		ResourceID:   invitation.ID.String(),
		Details:      map[string]any{"role": string(parsed)},
	})
	return invitation, nil
}

func normalizeEmail(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if !strings.Contains(value, "@") {
		return ""
	}
	return value
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
