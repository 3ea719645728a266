// Package domain contains the user profile model that carries organization
// membership and the OTP requirement.
package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// CanManage reports whether the role administers its organization.
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// OTPRequirement replaces the nullable requiresOTPVerification flag. Rows
// that predate OTP verification are backfilled to OTPLegacy.
type OTPRequirement string

const (
	OTPRequired    OTPRequirement = "required"
	OTPNotRequired OTPRequirement = "not_required"
	OTPLegacy      OTPRequirement = "legacy"
)

// OTPRequirementFromFlag maps the tri-state flag onto the tagged value.
func OTPRequirementFromFlag(flag *bool) OTPRequirement {
	switch {
	case flag == nil:
		return OTPLegacy
	case *flag:
		return OTPRequired
	default:
		return OTPNotRequired
	}
}

// Flag renders the tagged value as the tri-state flag clients expect.
func (r OTPRequirement) Flag() *bool {
	switch r {
	case OTPRequired:
		v := true
		return &v
	case OTPNotRequired:
		v := false
		return &v
	default:
		return nil
	}
}

// UserProfile is created at signup and never hard-deleted.
type UserProfile struct {
	ID               snowflake.ID   `gorm:"primaryKey" json:"id"`
	UserID           snowflake.ID   `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	Email            string         `gorm:"column:email;type:text;not null;uniqueIndex" json:"email"`
	FirstName        string         `gorm:"column:first_name;type:text" json:"first_name"`
	LastName         string         `gorm:"column:last_name;type:text" json:"last_name"`
	OrganizationID   *snowflake.ID  `gorm:"column:organization_id;index" json:"organization_id,omitempty"`
	Role             Role           `gorm:"column:role;type:text;not null;default:'member'" json:"role"`
	ProfileCompleted bool           `gorm:"column:profile_completed;not null;default:false" json:"profile_completed"`
	SetupCompleted   bool           `gorm:"column:setup_completed;not null;default:false" json:"setup_completed"`
	OTPRequirement   OTPRequirement `gorm:"column:otp_requirement;type:text;not null;default:'legacy'" json:"otp_requirement"`
	IsActive         bool           `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (UserProfile) TableName() string { return "user_profiles" }

func (p *UserProfile) HasOrganization() bool {
	return p.OrganizationID != nil && *p.OrganizationID != 0
}

// InOrganization reports whether the profile belongs to orgID.
func (p *UserProfile) InOrganization(orgID snowflake.ID) bool {
	return p.HasOrganization() && *p.OrganizationID == orgID
}

func (p *UserProfile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// NormalizeEmail lower-cases and trims a parsed address.
func NormalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}
