// Package domain contains persistence models for the org service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization is a healthcare entity. OwnerID points at the founding user
// and does not imply membership.
type Organization struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"type:text;not null" json:"name"`
	Slug      string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	OwnerID   snowflake.ID      `gorm:"column:owner_id;not null;index" json:"owner_id"`
	Email     string            `gorm:"type:text;column:email" json:"email,omitempty"`
	Phone     string            `gorm:"type:text;column:phone" json:"phone,omitempty"`
	IsActive  bool              `gorm:"column:is_active;not null;default:true" json:"is_active"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }
