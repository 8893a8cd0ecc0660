package cache

import (
	"testing"
	"time"

	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpires(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTTLCache[string, int](func() time.Time { return now })

	c.Set("a", 1, time.Minute)
	c.Set("zero", 2, 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("zero")
	assert.False(t, ok)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestTTLCacheResetsWhenFull(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTTLCache[int, int](func() time.Time { return now })
	c.maxSize = 2

	c.Set(1, 1, time.Hour)
	c.Set(2, 2, time.Hour)
	c.Set(3, 3, time.Hour)

	_, ok := c.Get(1)
	assert.False(t, ok)
	v, ok := c.Get(3)
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestAccountResolverCacheKeepsTokenCase(t *testing.T) {
	c := NewAccountResolverCache()
	found := &accountdomain.AccountWithTenant{Account: accountdomain.Account{ID: 9}}

	c.SetAccount(" Token-A ", found, time.Minute)
	got, ok := c.GetAccount("Token-A")
	assert.True(t, ok)
	assert.Equal(t, found.Account.ID, got.Account.ID)

	_, ok = c.GetAccount("token-a")
	assert.False(t, ok)

	c.Invalidate("Token-A")
	_, ok = c.GetAccount("Token-A")
	assert.False(t, ok)

	c.SetAccount("empty", &accountdomain.AccountWithTenant{}, time.Minute)
	_, ok = c.GetAccount("empty")
	assert.False(t, ok)
}

func TestAccountResolverCacheInvalidatesByAccountAndTenant(t *testing.T) {
	c := NewAccountResolverCache()
	c.SetAccount("a", &accountdomain.AccountWithTenant{Account: accountdomain.Account{ID: 1, TenantID: 10}}, time.Minute)
	c.SetAccount("b", &accountdomain.AccountWithTenant{Account: accountdomain.Account{ID: 2, TenantID: 10}}, time.Minute)
	c.SetAccount("c", &accountdomain.AccountWithTenant{Account: accountdomain.Account{ID: 3, TenantID: 20}}, time.Minute)

	c.InvalidateAccount(1)
	_, ok := c.GetAccount("a")
	assert.False(t, ok)
	_, ok = c.GetAccount("b")
	assert.True(t, ok)

	c.InvalidateTenant(10)
	_, ok = c.GetAccount("b")
	assert.False(t, ok)
	_, ok = c.GetAccount("c")
	assert.True(t, ok)
}
