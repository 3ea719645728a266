package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ResetToken is scoped to an email address rather than a user id so that
// nothing about the account is revealed before the token is used.
type ResetToken struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Email     string       `gorm:"column:email;type:text;not null;index" json:"email"`
	Token     string       `gorm:"column:token;type:text;not null;uniqueIndex:ux_password_reset_tokens_token" json:"-"`
	ExpiresAt time.Time    `gorm:"column:expires_at;not null" json:"expires_at"`
	IsUsed    bool         `gorm:"column:is_used;not null;default:false" json:"is_used"`
	UsedAt    *time.Time   `gorm:"column:used_at" json:"used_at,omitempty"`
	// Superseded marks tokens invalidated by a newer request. They get no
	// grace window.
	Superseded      bool      `gorm:"column:superseded;not null;default:false" json:"superseded"`
	NewPasswordHash *string   `gorm:"column:new_password_hash;type:text" json:"-"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

func (ResetToken) TableName() string { return "password_reset_tokens" }

func (t *ResetToken) TokenExpiresAt() *time.Time { return &t.ExpiresAt }
func (t *ResetToken) TokenUsed() bool            { return t.IsUsed }
func (t *ResetToken) TokenUsedAt() *time.Time    { return t.UsedAt }
func (t *ResetToken) GraceEligible() bool        { return !t.Superseded }
