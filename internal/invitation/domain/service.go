package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/errs"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"gorm.io/gorm"
)

type Service interface {
	WithTx(tx *gorm.DB) Service
	Issue(ctx context.Context, req IssueRequest) (*IssueResult, error)
	// Accept joins the caller to the inviting organization.
	Accept(ctx context.Context, token string) (*MemberInvitation, error)
	Cancel(ctx context.Context, invitationID snowflake.ID) error
	List(ctx context.Context) ([]View, error)
	// Lookup is public and reports bad tokens through LookupResult.
	Lookup(ctx context.Context, token string) (*LookupResult, error)
}

type IssueRequest struct {
	Email string             `json:"email"`
	Role  profiledomain.Role `json:"role"`
}

// IssueResult always carries the token so it can be handed over manually
// when the email could not be scheduled.
type IssueResult struct {
	Invitation            *MemberInvitation `json:"invitation"`
	Token                 string            `json:"token"`
	NotificationScheduled bool              `json:"notification_scheduled"`
}

type LookupResult struct {
	Valid            bool               `json:"valid"`
	Reason           string             `json:"reason,omitempty"`
	OrganizationName string             `json:"organization_name,omitempty"`
	Email            string             `json:"email,omitempty"`
	Role             profiledomain.Role `json:"role,omitempty"`
	ExpiresAt        *time.Time         `json:"expires_at,omitempty"`
}

var (
	ErrInvitationNotFound = errs.New(errs.KindNotFound, "invitation not found")
	ErrInvitationUsed     = errs.New(errs.KindAlreadyUsed, "this invitation has already been used")
	ErrInvitationExpired  = errs.New(errs.KindExpired, "this invitation has expired")
	ErrEmailMismatch      = errs.New(errs.KindEmailMismatch, "this invitation was sent to a different email address")
	ErrAlreadyInOrg       = errs.New(errs.KindInvariantViolation, "you already belong to an organization")
	ErrAlreadyMember      = errs.New(errs.KindAlreadyExists, "this email already belongs to your organization")
	ErrAlreadyInvited     = errs.New(errs.KindAlreadyExists, "this email already has a pending invitation")
	ErrInvalidRole        = errs.New(errs.KindInvalidArgument, "role must be admin, member or viewer")
	ErrInvalidEmail       = errs.New(errs.KindInvalidArgument, "a valid email address is required")
	ErrNotAdmin           = errs.New(errs.KindInsufficientPermissions, "only organization owners and admins can manage invitations")
)
