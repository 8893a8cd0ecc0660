package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chatdesk/internal/account/domain"
	tenantdomain "github.com/smallbiznis/chatdesk/internal/tenant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Create(account).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

type accountTenantRow struct {
	ID              snowflake.ID
	TenantID        snowflake.ID
	Name            string
	OwnerUserID     snowflake.ID
	GatewayToken    string
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	TenantName      string
	TenantSubdomain string
	TenantStatus    string
	TenantCreatedAt time.Time
	TenantUpdatedAt time.Time
}

func (r *repo) FindByGatewayToken(ctx context.Context, db *gorm.DB, token string) (*domain.AccountWithTenant, error) {
	var rows []accountTenantRow
	err := db.WithContext(ctx).Raw(
		`SELECT a.id, a.tenant_id, a.name, a.owner_user_id, a.gateway_token, a.status,
			a.created_at, a.updated_at,
			t.name AS tenant_name, t.subdomain AS tenant_subdomain, t.status AS tenant_status,
			t.created_at AS tenant_created_at, t.updated_at AS tenant_updated_at
		FROM accounts a
		JOIN tenants t ON t.id = a.tenant_id
		WHERE a.gateway_token = ?
		LIMIT 1`,
		token,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	return &domain.AccountWithTenant{
		Account: domain.Account{
			ID:           row.ID,
			TenantID:     row.TenantID,
			Name:         row.Name,
			OwnerUserID:  row.OwnerUserID,
			GatewayToken: row.GatewayToken,
			Status:       domain.Status(row.Status),
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
		},
		Tenant: tenantdomain.Tenant{
			ID:        row.TenantID,
			Name:      row.TenantName,
			Subdomain: row.TenantSubdomain,
			Status:    tenantdomain.Status(row.TenantStatus),
			CreatedAt: row.TenantCreatedAt,
			UpdatedAt: row.TenantUpdatedAt,
		},
	}, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": now})
	return result.RowsAffected, result.Error
}

func (r *repo) InsertAgent(ctx context.Context, db *gorm.DB, agent *domain.Agent) error {
	return db.WithContext(ctx).Create(agent).Error
}

func (r *repo) FindAgent(ctx context.Context, db *gorm.DB, accountID, agentID snowflake.ID) (*domain.Agent, error) {
	var agent domain.Agent
	err := db.WithContext(ctx).
		Where("account_id = ? AND id = ?", accountID, agentID).
		First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *repo) ListAgents(ctx context.Context, db *gorm.DB, filter domain.AgentFilter) ([]domain.Agent, error) {
	stmt := db.WithContext(ctx).Model(&domain.Agent{}).
		Where("account_id = ?", filter.AccountID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if len(filter.Availabilities) > 0 {
		stmt = stmt.Where("availability IN ?", filter.Availabilities)
	}

	var agents []domain.Agent
	if err := stmt.Order("id asc").Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *repo) UpdateAvailability(ctx context.Context, db *gorm.DB, accountID, agentID snowflake.ID, availability domain.Availability, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Model(&domain.Agent{}).
		Where("account_id = ? AND id = ?", accountID, agentID).
		Updates(map[string]any{"availability": availability, "updated_at": now})
	return result.RowsAffected, result.Error
}

func (r *repo) InsertSession(ctx context.Context, db *gorm.DB, session *domain.AgentSession) error {
	return db.WithContext(ctx).Create(session).Error
}

func (r *repo) InsertCustomRole(ctx context.Context, db *gorm.DB, role *domain.CustomRole) error {
	return db.WithContext(ctx).Create(role).Error
}

func (r *repo) InsertInvitation(ctx context.Context, db *gorm.DB, invitation *domain.Invitation) error {
	return db.WithContext(ctx).Create(invitation).Error
}
