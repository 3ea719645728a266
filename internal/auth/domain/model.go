// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is the local identity record behind a profile.
type User struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	ExternalID          string       `gorm:"column:external_id;type:text;not null;uniqueIndex" json:"external_id"`
	Provider            string       `gorm:"column:provider;type:text;not null;default:'local'" json:"provider"`
	DisplayName         string       `gorm:"column:display_name;type:text" json:"display_name"`
	Email               string       `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash        *string      `gorm:"column:password_hash;type:text" json:"-"`
	LastPasswordChanged *time.Time   `gorm:"column:last_password_changed" json:"last_password_changed,omitempty"`
	CreatedAt           time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Session represents a persisted login session.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	UserAgent        string       `gorm:"column:user_agent;type:text"`
	IPAddress        string       `gorm:"column:ip_address;type:text"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }
