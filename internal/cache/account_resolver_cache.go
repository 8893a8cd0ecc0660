package cache

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
)

// AccountResolverCache stores gateway token lookups for webhook routing.
// Only resolved accounts are cached so a newly provisioned token is seen
// immediately. Writers that delete or deactivate an account or tenant must
// invalidate it, otherwise routing keeps seeing it until the entry expires.
type AccountResolverCache interface {
	GetAccount(token string) (*accountdomain.AccountWithTenant, bool)
	SetAccount(token string, account *accountdomain.AccountWithTenant, ttl time.Duration)
	Invalidate(token string)
	InvalidateAccount(accountID snowflake.ID)
	InvalidateTenant(tenantID snowflake.ID)
}

type accountResolverCache struct {
	accounts Cache[string, accountdomain.AccountWithTenant]
}

func NewAccountResolverCache() AccountResolverCache {
	return &accountResolverCache{
		accounts: NewTTLCache[string, accountdomain.AccountWithTenant](),
	}
}

func (c *accountResolverCache) GetAccount(token string) (*accountdomain.AccountWithTenant, bool) {
	found, ok := c.accounts.Get(cacheKey(token))
	if !ok {
		return nil, false
	}
	return &found, true
}

func (c *accountResolverCache) SetAccount(token string, account *accountdomain.AccountWithTenant, ttl time.Duration) {
	if account == nil || account.Account.ID == 0 {
		return
	}
	c.accounts.Set(cacheKey(token), *account, ttl)
}

func (c *accountResolverCache) Invalidate(token string) {
	c.accounts.Delete(cacheKey(token))
}

func (c *accountResolverCache) InvalidateAccount(accountID snowflake.ID) {
	c.accounts.DeleteFunc(func(_ string, found accountdomain.AccountWithTenant) bool {
		return found.Account.ID == accountID
	})
}

func (c *accountResolverCache) InvalidateTenant(tenantID snowflake.ID) {
	c.accounts.DeleteFunc(func(_ string, found accountdomain.AccountWithTenant) bool {
		return found.Account.TenantID == tenantID
	})
}

// cacheKey trims parts and joins them. Tokens are case sensitive.
func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, trimmed)
	}
	return strings.Join(values, "|")
}
