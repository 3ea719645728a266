package domain

import (
	"context"
	"time"

	authdomain "github.com/smallbiznis/carebridge/internal/auth/domain"
	"github.com/smallbiznis/carebridge/internal/errs"
	invitationdomain "github.com/smallbiznis/carebridge/internal/invitation/domain"
	orgdomain "github.com/smallbiznis/carebridge/internal/organization/domain"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
)

type Service interface {
	Signup(ctx context.Context, req Request) (*Result, error)
}

// Request creates an account. InvitationToken joins an existing
// organization, OrganizationName founds a new one. Both are optional and
// mutually exclusive.
type Request struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	InvitationToken  string `json:"invitation_token"`
	OrganizationName string `json:"organization_name"`
	UserAgent        string `json:"-"`
	IPAddress        string `json:"-"`
}

type Result struct {
	User         *authdomain.User                   `json:"user"`
	Profile      *profiledomain.UserProfile         `json:"profile"`
	Organization *orgdomain.Organization            `json:"organization,omitempty"`
	Invitation   *invitationdomain.MemberInvitation `json:"invitation,omitempty"`
	RawToken     string                             `json:"-"`
	ExpiresAt    time.Time                          `json:"expires_at"`
	OTPSent      bool                               `json:"otp_sent"`
}

var (
	ErrInvalidRequest    = errs.New(errs.KindInvalidArgument, "email and password are required")
	ErrConflictingIntent = errs.New(errs.KindInvalidArgument, "choose either an invitation or a new organization, not both")
)
