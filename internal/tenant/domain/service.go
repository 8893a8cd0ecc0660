package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Provision(ctx context.Context, req ProvisionRequest) (*Tenant, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, status Status) (*Tenant, error)
}

// ProvisionRequest creates a tenant. An empty Subdomain is derived from Name.
type ProvisionRequest struct {
	Name      string
	Subdomain string
}

var (
	ErrNotFound         = errors.New("tenant_not_found")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidSubdomain = errors.New("invalid_subdomain")
	ErrSubdomainTaken   = errors.New("subdomain_taken")
	ErrInvalidStatus    = errors.New("invalid_status")
)

func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusActive, StatusInactive, StatusSuspended:
		return Status(value), nil
	default:
		return "", ErrInvalidStatus
	}
}
