package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Partnership links two organizations once the partner redeems the token
// minted by the requesting organization.
type Partnership struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	RequestingOrgID snowflake.ID  `gorm:"column:requesting_org_id;not null;index" json:"requesting_org_id"`
	PartnerOrgID    *snowflake.ID `gorm:"column:partner_org_id;index" json:"partner_org_id,omitempty"`
	PartnerEmail    string        `gorm:"column:partner_email;type:text" json:"partner_email,omitempty"`
	Token           string        `gorm:"column:token;type:text;not null;uniqueIndex:ux_partnerships_token" json:"-"`
	Status          Status        `gorm:"column:status;type:text;not null" json:"status"`
	ExpiresAt       time.Time     `gorm:"column:expires_at;not null" json:"expires_at"`
	CreatedBy       snowflake.ID  `gorm:"column:created_by;not null" json:"created_by"`
	RespondedBy     *snowflake.ID `gorm:"column:responded_by" json:"responded_by,omitempty"`
	RespondedAt     *time.Time    `gorm:"column:responded_at" json:"responded_at,omitempty"`
	CreatedAt       time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null" json:"updated_at"`
}

func (Partnership) TableName() string { return "organization_partnerships" }

func (p *Partnership) TokenExpiresAt() *time.Time { return &p.ExpiresAt }
func (p *Partnership) TokenUsed() bool            { return p.Status != StatusPending }
func (p *Partnership) TokenUsedAt() *time.Time    { return p.RespondedAt }
func (p *Partnership) GraceEligible() bool        { return false }

// EffectiveStatus reports expired for pending partnerships past their
// deadline. The stored status is never rewritten.
func (p *Partnership) EffectiveStatus(now time.Time) Status {
	if p.Status == StatusPending && !p.ExpiresAt.After(now) {
		return StatusExpired
	}
	return p.Status
}

// View is a partnership as returned to callers.
type View struct {
	Partnership
	EffectiveStatus Status `json:"effective_status"`
}
