package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
	auditdomain "github.com/smallbiznis/chatdesk/internal/audit/domain"
	"github.com/smallbiznis/chatdesk/internal/clock"
	"github.com/smallbiznis/chatdesk/internal/team/domain"
	"github.com/smallbiznis/chatdesk/pkg/db"
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
		log:         p.Log.Named("team.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		accountRepo: p.AccountRepo,
		audit:       p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, accountID snowflake.ID, name, description string) (*domain.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	account, err := s.accountRepo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountdomain.ErrNotFound
	}

	now := s.clock.Now()
	team := &domain.Team{
		ID:          s.genID.Generate(),
		AccountID:   accountID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, team); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrNameTaken
		}
		return nil, err
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       "team.create",
		ResourceType: "team",
		ResourceID:   team.ID.String(),
		Details:      map[string]any{"name": name},
	})
	return team, nil
}

func (s *Service) GetByID(ctx context.Context, accountID, id snowflake.ID) (*domain.Team, error) {
	team, err := s.repo.FindByID(ctx, s.db, accountID, id)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, domain.ErrNotFound
	}
	return team, nil
}

func (s *Service) AddMember(ctx context.Context, accountID, teamID, agentID snowflake.ID) error {
	team, err := s.GetByID(ctx, accountID, teamID)
	if err != nil {
		return err
	}
	if err := s.addMember(ctx, team, agentID); err != nil {
		return err
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       "team.add_member",
		ResourceType: "team",
		ResourceID:   teamID.String(),
		Details:      map[string]any{"agent_id": agentID.String()},
	})
	return nil
}

func (s *Service) AddMembers(ctx context.Context, accountID, teamID snowflake.ID, agentIDs []snowflake.ID) domain.BulkResult {
	result := domain.BulkResult{Failed: map[snowflake.ID]error{}}

	team, err := s.GetByID(ctx, accountID, teamID)
	if err != nil {
		for _, agentID := range agentIDs {
			result.Failed[agentID] = err
		}
		return result
	}

	for _, agentID := range agentIDs {
		if err := s.addMember(ctx, team, agentID); err != nil {
			s.log.Warn("failed to add team member",
				zap.String("team_id", teamID.String()),
				zap.String("agent_id", agentID.String()),
				zap.Error(err),
			)
			result.Failed[agentID] = err
			continue
		}
		result.Added = append(result.Added, agentID)
	}

	if len(result.Added) > 0 {
		_ = s.audit.Record(ctx, auditdomain.RecordRequest{
			AccountID:    accountID,
			Action:       "team.add_members",
			ResourceType: "team",
			ResourceID:   teamID.String(),
			Details:      map[string]any{"added": len(result.Added), "failed": len(result.Failed)},
		})
	}
	return result
}

func (s *Service) addMember(ctx context.Context, team *domain.Team, agentID snowflake.ID) error {
	agent, err := s.accountRepo.FindAgent(ctx, s.db, team.AccountID, agentID)
	if err != nil {
		return err
	}
	if agent == nil {
		return domain.ErrAgentNotFound
	}
	_, err = s.repo.InsertMember(ctx, s.db, &domain.TeamMember{
		ID:        s.genID.Generate(),
		AccountID: team.AccountID,
		TeamID:    team.ID,
		AgentID:   agentID,
		CreatedAt: s.clock.Now(),
	})
	return err
}

func (s *Service) RemoveMember(ctx context.Context, accountID, teamID, agentID snowflake.ID) error {
	if _, err := s.GetByID(ctx, accountID, teamID); err != nil {
		return err
	}
	rows, err := s.repo.DeleteMember(ctx, s.db, teamID, agentID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrMemberNotFound
	}

	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       "team.remove_member",
		ResourceType: "team",
		ResourceID:   teamID.String(),
		Details:      map[string]any{"agent_id": agentID.String()},
	})
	return nil
}

func (s *Service) ListMemberIDs(ctx context.Context, accountID, teamID snowflake.ID) ([]snowflake.ID, error) {
	if _, err := s.GetByID(ctx, accountID, teamID); err != nil {
		return nil, err
	}
	return s.repo.ListMemberIDs(ctx, s.db, teamID)
}
