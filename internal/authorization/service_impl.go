package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
	auditdomain "github.com/smallbiznis/chatdesk/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, accountID snowflake.ID, role, object, action string) error {
	parsed, err := accountdomain.ParseRole(role)
	if err != nil {
		return ErrInvalidRole
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(roleSubject(string(parsed)), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("account_id", accountID.String()),
			zap.String("role", string(parsed)),
			zap.String("object", object),
			zap.String("action", action),
		)
		s.auditDenied(ctx, accountID, string(parsed), object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) auditDenied(ctx context.Context, accountID snowflake.ID, role, object, action string) {
	if s.auditSvc == nil || accountID == 0 {
		return
	}
	_ = s.auditSvc.Record(ctx, auditdomain.RecordRequest{
		AccountID:    accountID,
		Action:       "authorization.denied",
		ResourceType: object,
		ResourceID:   action,
		Details: map[string]any{
			"role":   role,
			"object": object,
			"action": action,
		},
	})
}

func roleSubject(role string) string {
	return fmt.Sprintf("role:%s", strings.ToLower(role))
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	owner := roleSubject(string(accountdomain.RoleOwner))
	admin := roleSubject(string(accountdomain.RoleAdministrator))
	agent := roleSubject(string(accountdomain.RoleAgent))

	policies := [][]string{
		// Agent permissions
		{agent, ObjectConversation, ActionRead},
		{agent, ObjectConversation, ActionWrite},
		{agent, ObjectMessage, ActionRead},
		{agent, ObjectMessage, ActionWrite},
		{agent, ObjectLabel, ActionRead},

		// Administrator permissions
		{admin, ObjectInbox, "*"},
		{admin, ObjectTeam, "*"},
		{admin, ObjectAgent, "*"},
		{admin, ObjectConversation, "*"},
		{admin, ObjectMessage, "*"},
		{admin, ObjectLabel, "*"},
		{admin, ObjectAuditLog, ActionRead},

		// Owner permissions
		{owner, ObjectAccount, "*"},
		{owner, ObjectAuditLog, "*"},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// owner inherits administrator, administrator inherits agent
	for _, link := range [][]string{{owner, admin}, {admin, agent}} {
		if _, err := enforcer.AddGroupingPolicy(link); err != nil {
			return err
		}
	}
	return nil
}
