// Package testkit assembles the services on an isolated in-memory database
// for tests.
package testkit

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
	accountrepo "github.com/smallbiznis/chatdesk/internal/account/repository"
	accountservice "github.com/smallbiznis/chatdesk/internal/account/service"
	auditdomain "github.com/smallbiznis/chatdesk/internal/audit/domain"
	auditrepo "github.com/smallbiznis/chatdesk/internal/audit/repository"
	auditservice "github.com/smallbiznis/chatdesk/internal/audit/service"
	"github.com/smallbiznis/chatdesk/internal/cache"
	cascadedomain "github.com/smallbiznis/chatdesk/internal/cascade/domain"
	cascaderepo "github.com/smallbiznis/chatdesk/internal/cascade/repository"
	cascadeservice "github.com/smallbiznis/chatdesk/internal/cascade/service"
	"github.com/smallbiznis/chatdesk/internal/clock"
	"github.com/smallbiznis/chatdesk/internal/config"
	conversationdomain "github.com/smallbiznis/chatdesk/internal/conversation/domain"
	conversationrepo "github.com/smallbiznis/chatdesk/internal/conversation/repository"
	conversationservice "github.com/smallbiznis/chatdesk/internal/conversation/service"
	gatewaydomain "github.com/smallbiznis/chatdesk/internal/gateway/domain"
	inboxdomain "github.com/smallbiznis/chatdesk/internal/inbox/domain"
	inboxrepo "github.com/smallbiznis/chatdesk/internal/inbox/repository"
	inboxservice "github.com/smallbiznis/chatdesk/internal/inbox/service"
	messagedomain "github.com/smallbiznis/chatdesk/internal/message/domain"
	messagerepo "github.com/smallbiznis/chatdesk/internal/message/repository"
	messageservice "github.com/smallbiznis/chatdesk/internal/message/service"
	"github.com/smallbiznis/chatdesk/internal/migration"
	"github.com/smallbiznis/chatdesk/internal/notify"
	"github.com/smallbiznis/chatdesk/internal/observability/metrics"
	pipelinedomain "github.com/smallbiznis/chatdesk/internal/pipeline/domain"
	pipelineservice "github.com/smallbiznis/chatdesk/internal/pipeline/service"
	routerdomain "github.com/smallbiznis/chatdesk/internal/router/domain"
	routerservice "github.com/smallbiznis/chatdesk/internal/router/service"
	teamdomain "github.com/smallbiznis/chatdesk/internal/team/domain"
	teamrepo "github.com/smallbiznis/chatdesk/internal/team/repository"
	teamservice "github.com/smallbiznis/chatdesk/internal/team/service"
	tenantdomain "github.com/smallbiznis/chatdesk/internal/tenant/domain"
	tenantrepo "github.com/smallbiznis/chatdesk/internal/tenant/repository"
	tenantservice "github.com/smallbiznis/chatdesk/internal/tenant/service"
	unreaddomain "github.com/smallbiznis/chatdesk/internal/unread/domain"
	unreadservice "github.com/smallbiznis/chatdesk/internal/unread/service"
	"github.com/smallbiznis/chatdesk/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Epoch is the FakeClock start used by every harness.
var Epoch = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

// Options overrides parts of the default harness. Zero values keep defaults.
type Options struct {
	InboxConfig      *config.InboxConfig
	CascadeAtomic    *bool
	Provider         gatewaydomain.Provider
	Notifier         notify.Notifier
	ConversationRepo conversationdomain.Repository
}

type Harness struct {
	DB     *gorm.DB
	Clock  *clock.FakeClock
	GenID  *snowflake.Node
	Log    *zap.Logger
	Config *config.InboxConfigHolder

	ResolverCache cache.AccountResolverCache

	AccountRepo      accountdomain.Repository
	ConversationRepo conversationdomain.Repository
	MessageRepo      messagedomain.Repository

	Audit         auditdomain.Service
	Tenants       tenantdomain.Service
	Accounts      accountdomain.Service
	Inboxes       inboxdomain.Service
	Teams         teamdomain.Service
	Conversations conversationdomain.Service
	Unread        unreaddomain.Service
	Messages      messagedomain.Service
	Cascade       cascadedomain.Service
	Router        routerdomain.Service
	Pipeline      pipelinedomain.Service
	Provider      gatewaydomain.Provider
	Notifier      notify.Notifier
}

func New(t testing.TB) *Harness {
	return NewWithOptions(t, Options{})
}

func NewWithOptions(t testing.TB, opts Options) *Harness {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := migration.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	inboxCfg := config.DefaultInboxConfig()
	if opts.InboxConfig != nil {
		inboxCfg = *opts.InboxConfig
	}
	atomicCascade := true
	if opts.CascadeAtomic != nil {
		atomicCascade = *opts.CascadeAtomic
	}

	h := &Harness{
		DB:     conn,
		Clock:  clock.NewFakeClock(Epoch),
		GenID:  node,
		Log:    zap.NewNop(),
		Config: config.NewStaticInboxConfigHolder(inboxCfg),

		ResolverCache: cache.NewAccountResolverCache(),
	}
	noop := metrics.NewNoop()

	tenantRepo := tenantrepo.Provide()
	h.AccountRepo = accountrepo.Provide()
	inboxRepo := inboxrepo.Provide()
	h.ConversationRepo = conversationrepo.Provide()
	if opts.ConversationRepo != nil {
		h.ConversationRepo = opts.ConversationRepo
	}
	h.MessageRepo = messagerepo.Provide()

	h.Audit = auditservice.NewService(auditservice.Params{
		DB: conn, Log: h.Log, GenID: node, Clock: h.Clock, Repo: auditrepo.Provide(),
	})
	h.Tenants = tenantservice.New(tenantservice.Params{
		DB: conn, Log: h.Log, GenID: node, Clock: h.Clock, Repo: tenantRepo, Cache: h.ResolverCache,
	})
	h.Accounts = accountservice.New(accountservice.Params{
		DB: conn, Log: h.Log, GenID: node, Clock: h.Clock,
		Repo: h.AccountRepo, TenantRepo: tenantRepo, Audit: h.Audit, Cache: h.ResolverCache,
	})
	h.Inboxes = inboxservice.New(inboxservice.Params{
		DB: conn, Log: h.Log, GenID: node, Clock: h.Clock,
		Repo: inboxRepo, AccountRepo: h.AccountRepo, Audit: h.Audit,
	})
	h.Teams = teamservice.New(teamservice.Params{
		DB: conn, Log: h.Log, GenID: node, Clock: h.Clock,
		Repo: teamrepo.Provide(), AccountRepo: h.AccountRepo, Audit: h.Audit,
	})
	h.Conversations = conversationservice.New(conversationservice.Params{
		DB: conn, Log: h.Log, GenID: node, Clock: h.Clock, Config: h.Config,
		Repo: h.ConversationRepo, AccountRepo: h.AccountRepo, Inboxes: h.Inboxes, Audit: h.Audit,
	})
	h.Unread = unreadservice.New(unreadservice.Params{
		DB: conn, Log: h.Log, Clock: h.Clock,
		ConversationRepo: h.ConversationRepo, MessageRepo: h.MessageRepo, Audit: h.Audit, Metrics: noop,
	})
	h.Messages = messageservice.New(messageservice.Params{
		DB: conn, Log: h.Log, GenID: node, Clock: h.Clock, Config: h.Config,
		Repo: h.MessageRepo, ConversationRepo: h.ConversationRepo, Unread: h.Unread, Audit: h.Audit, Metrics: noop,
	})
	h.Cascade = cascadeservice.New(cascadeservice.Params{
		DB: conn, Log: h.Log, Config: config.Config{Cascade: config.CascadeConfig{Atomic: atomicCascade}},
		Repo: cascaderepo.Provide(), Audit: h.Audit, Metrics: noop, Cache: h.ResolverCache,
	})
	h.Router = routerservice.New(routerservice.Params{
		Log: h.Log, Config: h.Config, Accounts: h.Accounts, Conversations: h.Conversations,
		Inboxes: h.Inboxes, Cache: h.ResolverCache, Metrics: noop,
	})

	h.Provider = opts.Provider
	if h.Provider == nil {
		h.Provider = &StubProvider{}
	}
	h.Notifier = opts.Notifier
	if h.Notifier == nil {
		h.Notifier = &RecordingNotifier{}
	}
	h.Pipeline = pipelineservice.New(pipelineservice.Params{
		Log: h.Log, Clock: h.Clock, Router: h.Router, Conversations: h.Conversations,
		Messages: h.Messages, Inboxes: h.Inboxes, Provider: h.Provider, Notifier: h.Notifier, Metrics: noop,
	})
	return h
}

var seedCounter atomic.Int64

// Seeded is an active tenant with one account and its owner agent.
type Seeded struct {
	Tenant  *tenantdomain.Tenant
	Account *accountdomain.Account
	Owner   *accountdomain.Agent
	Token   string
}

// SeedAccount provisions a tenant and an account with a unique gateway token.
func (h *Harness) SeedAccount(t testing.TB) *Seeded {
	t.Helper()
	ctx := context.Background()
	n := seedCounter.Add(1)

	tenant, err := h.Tenants.Provision(ctx, tenantdomain.ProvisionRequest{
		Name:      fmt.Sprintf("Tenant %d", n),
		Subdomain: fmt.Sprintf("tenant-%d", n),
	})
	if err != nil {
		t.Fatalf("provision tenant: %v", err)
	}
	token := fmt.Sprintf("gw_token_%d", n)
	account, owner, err := h.Accounts.Create(ctx, accountdomain.CreateAccountRequest{
		TenantID:     tenant.ID,
		Name:         fmt.Sprintf("Account %d", n),
		OwnerUserID:  h.GenID.Generate(),
		OwnerName:    "Owner",
		OwnerEmail:   fmt.Sprintf("owner-%d@example.com", n),
		GatewayToken: token,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return &Seeded{Tenant: tenant, Account: account, Owner: owner, Token: token}
}

// AddAgent creates an active agent with the given availability.
func (h *Harness) AddAgent(t testing.TB, accountID snowflake.ID, name string, availability accountdomain.Availability) *accountdomain.Agent {
	t.Helper()
	ctx := context.Background()
	n := seedCounter.Add(1)

	agent, err := h.Accounts.CreateAgent(ctx, accountdomain.CreateAgentRequest{
		AccountID: accountID,
		Name:      name,
		Email:     fmt.Sprintf("agent-%d@example.com", n),
		Role:      accountdomain.RoleAgent,
	})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	if err := h.Accounts.UpdateAvailability(ctx, accountID, agent.ID, availability); err != nil {
		t.Fatalf("set availability: %v", err)
	}
	agent.Availability = availability
	return agent
}

// Count returns the number of rows in table matching where.
func (h *Harness) Count(t testing.TB, table, where string, args ...any) int64 {
	t.Helper()
	var count int64
	query := fmt.Sprintf("SELECT COUNT(1) FROM %s", table)
	if where != "" {
		query += " WHERE " + where
	}
	if err := h.DB.Raw(query, args...).Scan(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}
