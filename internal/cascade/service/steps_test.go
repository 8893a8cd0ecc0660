package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
	auditdomain "github.com/smallbiznis/chatdesk/internal/audit/domain"
	auditrepo "github.com/smallbiznis/chatdesk/internal/audit/repository"
	auditservice "github.com/smallbiznis/chatdesk/internal/audit/service"
	"github.com/smallbiznis/chatdesk/internal/cascade/domain"
	"github.com/smallbiznis/chatdesk/internal/cascade/repository"
	"github.com/smallbiznis/chatdesk/internal/clock"
	"github.com/smallbiznis/chatdesk/internal/config"
	"github.com/smallbiznis/chatdesk/internal/migration"
	"github.com/smallbiznis/chatdesk/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, atomic bool) (*Service, *gorm.DB, snowflake.ID) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	accountID := node.Generate()
	require.NoError(t, conn.Create(&accountdomain.Account{
		ID: accountID, TenantID: node.Generate(), Name: "Shop", OwnerUserID: node.Generate(),
		GatewayToken: "tok", Status: accountdomain.StatusActive, CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, conn.Create(&auditdomain.Entry{
		ID: node.Generate(), AccountID: accountID, Action: "account.create", ResourceType: "account", CreatedAt: now,
	}).Error)

	audit := auditservice.NewService(auditservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Clock: clock.NewFakeClock(now), Repo: auditrepo.Provide(),
	})
	svc := New(Params{
		DB:     conn,
		Log:    zap.NewNop(),
		Config: config.Config{Cascade: config.CascadeConfig{Atomic: atomic}},
		Repo:   repository.Provide(),
		Audit:  audit,
	}).(*Service)
	return svc, conn, accountID
}

func brokenSteps() []domain.Step {
	steps := accountSteps()
	broken := domain.Step{Name: "broken", Table: "missing_table", Where: "account_id = @account"}
	// fail after audit_log, before accounts
	return append([]domain.Step{steps[0], broken}, steps[1:]...)
}

func count(t *testing.T, conn *gorm.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Raw(query, args...).Scan(&n).Error)
	return n
}

func TestAccountStepsCoverEveryTable(t *testing.T) {
	steps := accountSteps()
	tables := make(map[string]bool, len(steps))
	for _, step := range steps {
		tables[step.Table] = true
	}
	conn, err := db.NewTest()
	require.NoError(t, err)
	for _, model := range migration.Models() {
		stmt := &gorm.Statement{DB: conn}
		require.NoError(t, stmt.Parse(model))
		if stmt.Schema.Table == "tenants" {
			continue
		}
		assert.True(t, tables[stmt.Schema.Table], "no cascade step for %s", stmt.Schema.Table)
	}
	assert.Equal(t, "accounts", steps[len(steps)-1].Table)
}

func TestDeleteAccountAtomicRollsBack(t *testing.T) {
	svc, conn, accountID := newTestService(t, true)
	svc.steps = brokenSteps()

	result, err := svc.DeleteAccount(context.Background(), accountID)
	require.Error(t, err)
	assert.Nil(t, result)

	var stepErr *domain.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "broken", stepErr.Step)
	assert.Equal(t, []string{"audit_log"}, stepErr.Completed)
	assert.True(t, stepErr.RolledBack)

	assert.Equal(t, int64(1), count(t, conn, "SELECT COUNT(1) FROM audit_log WHERE account_id = ?", accountID))
	assert.Equal(t, int64(1), count(t, conn, "SELECT COUNT(1) FROM accounts WHERE id = ?", accountID))
}

func TestDeleteAccountNonAtomicKeepsCompletedSteps(t *testing.T) {
	svc, conn, accountID := newTestService(t, false)
	svc.steps = brokenSteps()

	_, err := svc.DeleteAccount(context.Background(), accountID)
	var stepErr *domain.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.False(t, stepErr.RolledBack)

	assert.Equal(t, int64(0), count(t, conn, "SELECT COUNT(1) FROM audit_log WHERE account_id = ?", accountID))
	assert.Equal(t, int64(1), count(t, conn, "SELECT COUNT(1) FROM accounts WHERE id = ?", accountID))

	// a retry with the real steps finishes the job
	svc.steps = accountSteps()
	_, err = svc.DeleteAccount(context.Background(), accountID)
	require.NoError(t, err)

	report, err := svc.VerifyNoOrphans(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}
