package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// MemberInvitation invites one email address into an organization with a
// role. It is single-use and cancellation only deactivates it.
type MemberInvitation struct {
	ID             snowflake.ID       `gorm:"primaryKey" json:"id"`
	OrganizationID snowflake.ID       `gorm:"column:organization_id;not null;index:ix_member_invitations_org_email" json:"organization_id"`
	Email          string             `gorm:"column:email;type:text;not null;index:ix_member_invitations_org_email" json:"email"`
	Role           profiledomain.Role `gorm:"column:role;type:text;not null" json:"role"`
	Token          string             `gorm:"column:token;type:text;not null;uniqueIndex:ux_member_invitations_token" json:"-"`
	InvitedBy      snowflake.ID       `gorm:"column:invited_by;not null" json:"invited_by"`
	ExpiresAt      time.Time          `gorm:"column:expires_at;not null" json:"expires_at"`
	IsUsed         bool               `gorm:"column:is_used;not null;default:false" json:"is_used"`
	UsedBy         *snowflake.ID      `gorm:"column:used_by" json:"used_by,omitempty"`
	UsedAt         *time.Time         `gorm:"column:used_at" json:"used_at,omitempty"`
	IsActive       bool               `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt      time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time          `gorm:"not null" json:"updated_at"`
}

func (MemberInvitation) TableName() string { return "member_invitations" }

func (i *MemberInvitation) TokenExpiresAt() *time.Time { return &i.ExpiresAt }
func (i *MemberInvitation) TokenUsed() bool            { return i.IsUsed }
func (i *MemberInvitation) TokenUsedAt() *time.Time    { return i.UsedAt }
func (i *MemberInvitation) GraceEligible() bool        { return false }

func (i *MemberInvitation) StatusAt(now time.Time) Status {
	switch {
	case !i.IsActive:
		return StatusCancelled
	case i.IsUsed:
		return StatusAccepted
	case !i.ExpiresAt.After(now):
		return StatusExpired
	default:
		return StatusPending
	}
}

// View is an invitation as listed to organization admins.
type View struct {
	MemberInvitation
	Status Status `json:"status"`
}
