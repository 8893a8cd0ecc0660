package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
	"github.com/smallbiznis/chatdesk/internal/config"
	tenantdomain "github.com/smallbiznis/chatdesk/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultTenantName   = "Main"
	defaultTenantSlug   = "main"
	defaultAccountName  = "Main Inbox"
	defaultOwnerName    = "Chatdesk Admin"
	defaultOwnerEmail   = "admin@chatdesk.local"
	defaultGatewayToken = "dev_gateway_token"
)

// Module seeds a main tenant and account on development boots.
var Module = fx.Module("seed",
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, p Params) {
		if !cfg.IsDevelopment() {
			return
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				_, err := EnsureMainAccount(ctx, p, cfg.SeedGatewayToken)
				return err
			},
		})
	}),
)

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Tenants  tenantdomain.Service
	Accounts accountdomain.Service
}

type Result struct {
	Tenant  *tenantdomain.Tenant
	Account *accountdomain.AccountWithTenant
	Created bool
}

// EnsureMainAccount is idempotent: a second call finds the account by its
// gateway token and creates nothing.
func EnsureMainAccount(ctx context.Context, p Params, gatewayToken string) (*Result, error) {
	gatewayToken = strings.TrimSpace(gatewayToken)
	if gatewayToken == "" {
		gatewayToken = defaultGatewayToken
	}
	log := p.Log.Named("seed")

	existing, err := p.Accounts.GetByGatewayToken(ctx, gatewayToken)
	switch {
	case err == nil:
		return &Result{Tenant: &existing.Tenant, Account: existing}, nil
	case !errors.Is(err, accountdomain.ErrNotFound):
		return nil, err
	}

	tenant, err := p.Tenants.GetBySubdomain(ctx, defaultTenantSlug)
	if errors.Is(err, tenantdomain.ErrNotFound) {
		tenant, err = p.Tenants.Provision(ctx, tenantdomain.ProvisionRequest{
			Name:      defaultTenantName,
			Subdomain: defaultTenantSlug,
		})
	}
	if err != nil {
		return nil, err
	}

	if _, _, err := p.Accounts.Create(ctx, accountdomain.CreateAccountRequest{
		TenantID:     tenant.ID,
		Name:         defaultAccountName,
		OwnerUserID:  p.GenID.Generate(),
		OwnerName:    defaultOwnerName,
		OwnerEmail:   defaultOwnerEmail,
		GatewayToken: gatewayToken,
	}); err != nil {
		return nil, err
	}

	created, err := p.Accounts.GetByGatewayToken(ctx, gatewayToken)
	if err != nil {
		return nil, err
	}
	log.Info("seeded main account",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("account_id", created.Account.ID.String()),
	)
	return &Result{Tenant: tenant, Account: created, Created: true}, nil
}
