package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Verification is one issued code. At most one per user is live at a time.
type Verification struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID     snowflake.ID `gorm:"column:user_id;not null;index" json:"user_id"`
	Code       string       `gorm:"column:code;type:text;not null" json:"-"`
	ExpiresAt  time.Time    `gorm:"column:expires_at;not null" json:"expires_at"`
	Attempts   int          `gorm:"column:attempts;not null;default:0" json:"attempts"`
	IsUsed     bool         `gorm:"column:is_used;not null;default:false" json:"is_used"`
	IsVerified bool         `gorm:"column:is_verified;not null;default:false" json:"is_verified"`
	VerifiedAt *time.Time   `gorm:"column:verified_at" json:"verified_at,omitempty"`
	CreatedAt  time.Time    `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`
}

func (Verification) TableName() string { return "otp_verifications" }

func (v *Verification) TokenExpiresAt() *time.Time { return &v.ExpiresAt }
func (v *Verification) TokenUsed() bool            { return v.IsUsed }
func (v *Verification) TokenUsedAt() *time.Time    { return nil }
func (v *Verification) GraceEligible() bool        { return false }

type State string

const (
	StateVerified     State = "verified"
	StateLegacyExempt State = "legacy_exempt"
	StatePending      State = "pending"
	StateNeedsNewCode State = "needs_new_code"
)
