package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusRevoked  Status = "revoked"
	// StatusExpired is computed at read time and never stored.
	StatusExpired Status = "expired"
)

type Permission string

const (
	PermissionView            Permission = "view"
	PermissionComment         Permission = "comment"
	PermissionViewMedications Permission = "view_medications"
)

func (p Permission) Valid() bool {
	switch p {
	case PermissionView, PermissionComment, PermissionViewMedications:
		return true
	}
	return false
}

// PermissionSet is stored as a JSON array.
type PermissionSet = datatypes.JSONSlice[Permission]

// PatientShare is the token a recipient submits to request access to a
// patient record.
type PatientShare struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	PatientID      snowflake.ID `gorm:"column:patient_id;not null;index" json:"patient_id"`
	OrganizationID snowflake.ID `gorm:"column:organization_id;not null;index" json:"organization_id"`
	Token          string       `gorm:"column:token;type:text;not null;uniqueIndex:ux_patient_shares_token" json:"-"`
	CreatedBy      snowflake.ID `gorm:"column:created_by;not null" json:"created_by"`
	ExpiresAt      *time.Time   `gorm:"column:expires_at" json:"expires_at,omitempty"`
	IsActive       bool         `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

func (PatientShare) TableName() string { return "patient_shares" }

// A share is reusable until revoked, so it never reports itself used.
func (s *PatientShare) TokenExpiresAt() *time.Time { return s.ExpiresAt }
func (s *PatientShare) TokenUsed() bool            { return false }
func (s *PatientShare) TokenUsedAt() *time.Time    { return nil }
func (s *PatientShare) GraceEligible() bool        { return false }

// TokenAccessGrant lets a user of another organization read a patient
// record. Status only moves pending -> approved|denied and approved -> revoked.
type TokenAccessGrant struct {
	ID                snowflake.ID  `gorm:"primaryKey" json:"id"`
	PatientID         snowflake.ID  `gorm:"column:patient_id;not null;index:ix_access_grants_patient_requester" json:"patient_id"`
	ShareID           *snowflake.ID `gorm:"column:share_id" json:"share_id,omitempty"`
	GrantorOrgID      snowflake.ID  `gorm:"column:grantor_org_id;not null;index" json:"grantor_org_id"`
	RequestedByUserID snowflake.ID  `gorm:"column:requested_by_user_id;not null;index:ix_access_grants_patient_requester" json:"requested_by_user_id"`
	RequestedByOrgID  snowflake.ID  `gorm:"column:requested_by_org_id;not null" json:"requested_by_org_id"`
	GrantedToUserID   snowflake.ID  `gorm:"column:granted_to_user_id;not null" json:"granted_to_user_id"`
	GrantedToOrgID    snowflake.ID  `gorm:"column:granted_to_org_id;not null" json:"granted_to_org_id"`
	DecidedBy         *snowflake.ID `gorm:"column:decided_by" json:"decided_by,omitempty"`
	Status            Status        `gorm:"column:status;type:text;not null;index" json:"status"`
	Permissions       PermissionSet `gorm:"column:permissions" json:"permissions"`
	Message           string        `gorm:"column:message;type:text" json:"message,omitempty"`
	DenialReason      string        `gorm:"column:denial_reason;type:text" json:"denial_reason,omitempty"`
	ExpiresAt         *time.Time    `gorm:"column:expires_at" json:"expires_at,omitempty"`
	RequestedAt       time.Time     `gorm:"column:requested_at;not null" json:"requested_at"`
	GrantedAt         *time.Time    `gorm:"column:granted_at" json:"granted_at,omitempty"`
	DeniedAt          *time.Time    `gorm:"column:denied_at" json:"denied_at,omitempty"`
	RevokedAt         *time.Time    `gorm:"column:revoked_at" json:"revoked_at,omitempty"`
	IsActive          bool          `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt         time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"not null" json:"updated_at"`
}

func (TokenAccessGrant) TableName() string { return "token_access_grants" }

// Expired is true for approved grants past their deadline. A nil
// ExpiresAt never expires.
func (g *TokenAccessGrant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && !g.ExpiresAt.After(now)
}

func (g *TokenAccessGrant) Pending() bool {
	return g.IsActive && g.Status == StatusPending
}

// Live reports an approved, unrevoked, unexpired grant.
func (g *TokenAccessGrant) Live(now time.Time) bool {
	return g.IsActive && g.Status == StatusApproved && !g.Expired(now)
}

func (g *TokenAccessGrant) EffectiveStatus(now time.Time) Status {
	if g.Status == StatusApproved && g.Expired(now) {
		return StatusExpired
	}
	return g.Status
}

func (g *TokenAccessGrant) Allows(p Permission) bool {
	for _, have := range g.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// GrantView is a grant as returned to callers.
type GrantView struct {
	TokenAccessGrant
	EffectiveStatus Status `json:"effective_status"`
}

func NewGrantView(g TokenAccessGrant, now time.Time) GrantView {
	return GrantView{TokenAccessGrant: g, EffectiveStatus: g.EffectiveStatus(now)}
}
