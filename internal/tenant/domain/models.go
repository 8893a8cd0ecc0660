// Package domain contains persistence models for the tenant directory.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Tenant is the top-level isolation boundary. Accounts belong to exactly one
// tenant and are reachable only while the tenant is active.
type Tenant struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:varchar(255);not null" json:"name"`
	Subdomain string       `gorm:"type:varchar(20);not null;uniqueIndex:ux_tenants_subdomain" json:"subdomain"`
	Status    Status       `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }

func (t Tenant) IsActive() bool { return t.Status == StatusActive }
