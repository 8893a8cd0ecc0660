package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/chatdesk/internal/audit/domain"
	"github.com/smallbiznis/chatdesk/internal/cache"
	"github.com/smallbiznis/chatdesk/internal/cascade/domain"
	"github.com/smallbiznis/chatdesk/internal/config"
	"github.com/smallbiznis/chatdesk/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Config  config.Config
	Repo    domain.Repository
	Audit   auditdomain.Service
	Metrics *metrics.Metrics           `optional:"true"`
	Cache   cache.AccountResolverCache `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	atomic  bool
	repo    domain.Repository
	audit   auditdomain.Service
	metrics *metrics.Metrics
	steps   []domain.Step
	cache   cache.AccountResolverCache
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("cascade.service"),
		atomic:  p.Config.Cascade.Atomic,
		repo:    p.Repo,
		audit:   p.Audit,
		metrics: p.Metrics,
		steps:   accountSteps(),
		cache:   p.Cache,
	}
}

func (s *Service) DeleteAccount(ctx context.Context, accountID snowflake.ID) (*domain.DeleteResult, error) {
	started := time.Now()
	result := &domain.DeleteResult{AccountID: accountID, Atomic: s.atomic}

	var err error
	if s.atomic {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.runSteps(ctx, tx, accountID, result)
		})
		var stepErr *domain.StepError
		if errors.As(err, &stepErr) {
			stepErr.RolledBack = true
			result.Steps = nil
		}
	} else {
		err = s.runSteps(ctx, s.db, accountID, result)
	}
	// a partial run may already have removed the account row
	if s.cache != nil && (err == nil || !s.atomic) {
		s.cache.InvalidateAccount(accountID)
	}

	if err != nil {
		s.metrics.RecordCascadeDeletion(ctx, "account", "failed")
		s.log.Error("account cascade failed",
			zap.String("account_id", accountID.String()),
			zap.Bool("atomic", s.atomic),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordCascadeDeletion(ctx, "account", "deleted")
	// the audit rows of the account are gone with it; log instead
	s.log.Info("account deleted",
		zap.String("account_id", accountID.String()),
		zap.Bool("atomic", s.atomic),
		zap.Int64("rows", result.TotalRows()),
		zap.Duration("duration", time.Since(started)),
	)
	return result, nil
}

func (s *Service) runSteps(ctx context.Context, db *gorm.DB, accountID snowflake.ID, result *domain.DeleteResult) error {
	completed := make([]string, 0, len(s.steps))
	for _, step := range s.steps {
		rows, err := s.repo.DeleteWhere(ctx, db, step.Table, step.Where, step.Args(accountID)...)
		if err != nil {
			return &domain.StepError{Step: step.Name, Completed: completed, Err: err}
		}
		completed = append(completed, step.Name)
		result.Steps = append(result.Steps, domain.StepResult{Name: step.Name, Rows: rows})
		s.log.Debug("cascade step done",
			zap.String("account_id", accountID.String()),
			zap.String("step", step.Name),
			zap.Int64("rows", rows),
		)
	}
	return nil
}

func (s *Service) VerifyNoOrphans(ctx context.Context, accountID snowflake.ID) (*domain.Report, error) {
	report := &domain.Report{AccountID: accountID, Counts: make(map[string]int64, len(s.steps))}
	for _, step := range accountSteps() {
		count, err := s.repo.CountWhere(ctx, s.db, step.Table, step.Where, step.Args(accountID)...)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", step.Table, err)
		}
		report.Counts[step.Table] = count
	}
	return report, nil
}

func (s *Service) DeleteAgent(ctx context.Context, accountID, agentID snowflake.ID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.repo.Exists(ctx, tx, "agents", accountID, agentID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrAgentNotFound
		}
		for _, table := range []string{"agent_sessions", "inbox_members", "team_members"} {
			if _, err := s.repo.DeleteWhere(ctx, tx, table, "agent_id = ?", agentID); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		if _, err := s.repo.NullOut(ctx, tx, "conversations", "assigned_agent_id", accountID, agentID); err != nil {
			return fmt.Errorf("unassign conversations: %w", err)
		}
		if _, err := s.repo.NullOut(ctx, tx, "inboxes", "last_assigned_agent_id", accountID, agentID); err != nil {
			return fmt.Errorf("reset inbox rotation: %w", err)
		}
		_, err = s.repo.DeleteWhere(ctx, tx, "agents", "id = ? AND account_id = ?", agentID, accountID)
		return err
	})
	return s.finishScoped(ctx, "agent", accountID, agentID, err)
}

func (s *Service) DeleteTeam(ctx context.Context, accountID, teamID snowflake.ID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.repo.Exists(ctx, tx, "teams", accountID, teamID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrTeamNotFound
		}
		if _, err := s.repo.DeleteWhere(ctx, tx, "team_members", "team_id = ?", teamID); err != nil {
			return fmt.Errorf("delete team_members: %w", err)
		}
		_, err = s.repo.DeleteWhere(ctx, tx, "teams", "id = ? AND account_id = ?", teamID, accountID)
		return err
	})
	return s.finishScoped(ctx, "team", accountID, teamID, err)
}

// DeleteInbox keeps conversations and detaches them from the inbox.
func (s *Service) DeleteInbox(ctx context.Context, accountID, inboxID snowflake.ID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.repo.Exists(ctx, tx, "inboxes", accountID, inboxID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrInboxNotFound
		}
		if _, err := s.repo.DeleteWhere(ctx, tx, "inbox_members", "inbox_id = ?", inboxID); err != nil {
			return fmt.Errorf("delete inbox_members: %w", err)
		}
		if _, err := s.repo.NullOut(ctx, tx, "conversations", "inbox_id", accountID, inboxID); err != nil {
			return fmt.Errorf("detach conversations: %w", err)
		}
		_, err = s.repo.DeleteWhere(ctx, tx, "inboxes", "id = ? AND account_id = ?", inboxID, accountID)
		return err
	})
	return s.finishScoped(ctx, "inbox", accountID, inboxID, err)
}

func (s *Service) finishScoped(ctx context.Context, scope string, accountID, id snowflake.ID, err error) error {
	if err != nil {
		s.metrics.RecordCascadeDeletion(ctx, scope, "failed")
		return err
	}
	s.metrics.RecordCascadeDeletion(ctx, scope, "deleted")
	_ = s.audit.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       scope + ".delete",
		ResourceType: scope,
		ResourceID:   id.String(),
	})
	return nil
}
