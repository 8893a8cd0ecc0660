package service_test

import (
	"context"
	"testing"

	"github.com/smallbiznis/chatdesk/internal/tenant/domain"
	"github.com/smallbiznis/chatdesk/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvision(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)

	tenant, err := h.Tenants.Provision(ctx, domain.ProvisionRequest{Name: "Toko Budi"})
	require.NoError(t, err)
	assert.Equal(t, "toko-budi", tenant.Subdomain)
	assert.Equal(t, domain.StatusActive, tenant.Status)

	_, err = h.Tenants.Provision(ctx, domain.ProvisionRequest{Name: "Other", Subdomain: "TOKO-BUDI"})
	assert.ErrorIs(t, err, domain.ErrSubdomainTaken)

	_, err = h.Tenants.Provision(ctx, domain.ProvisionRequest{Name: "Bad", Subdomain: "no"})
	assert.ErrorIs(t, err, domain.ErrInvalidSubdomain)

	_, err = h.Tenants.Provision(ctx, domain.ProvisionRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	found, err := h.Tenants.GetBySubdomain(ctx, " Toko-Budi ")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, found.ID)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	h := testkit.New(t)

	tenant, err := h.Tenants.Provision(ctx, domain.ProvisionRequest{Name: "Acme"})
	require.NoError(t, err)

	updated, err := h.Tenants.UpdateStatus(ctx, tenant.ID, domain.StatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuspended, updated.Status)
	assert.False(t, updated.IsActive())

	_, err = h.Tenants.UpdateStatus(ctx, tenant.ID, domain.Status("deleted"))
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = h.Tenants.UpdateStatus(ctx, h.GenID.Generate(), domain.StatusActive)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
