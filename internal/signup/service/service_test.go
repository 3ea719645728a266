package service

import (
	"context"
	"testing"
	"time"

	authdomain "github.com/smallbiznis/carebridge/internal/auth/domain"
	authrepo "github.com/smallbiznis/carebridge/internal/auth/repository"
	authservice "github.com/smallbiznis/carebridge/internal/auth/service"
	"github.com/smallbiznis/carebridge/internal/config"
	"github.com/smallbiznis/carebridge/internal/errs"
	invitationdomain "github.com/smallbiznis/carebridge/internal/invitation/domain"
	invitationrepo "github.com/smallbiznis/carebridge/internal/invitation/repository"
	invitationservice "github.com/smallbiznis/carebridge/internal/invitation/service"
	notificationdomain "github.com/smallbiznis/carebridge/internal/notification/domain"
	"github.com/smallbiznis/carebridge/internal/notification/notificationtest"
	orgrepo "github.com/smallbiznis/carebridge/internal/organization/repository"
	orgservice "github.com/smallbiznis/carebridge/internal/organization/service"
	otpdomain "github.com/smallbiznis/carebridge/internal/otp/domain"
	otprepo "github.com/smallbiznis/carebridge/internal/otp/repository"
	otpservice "github.com/smallbiznis/carebridge/internal/otp/service"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"github.com/smallbiznis/carebridge/internal/signup/domain"
	"github.com/smallbiznis/carebridge/internal/testkit"
	"github.com/smallbiznis/carebridge/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	env         *testkit.Env
	signup      domain.Service
	auth        authdomain.Service
	invitations invitationdomain.Service
	otp         otpdomain.Service
	dispatcher  *notificationtest.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := testkit.New(t,
		&authdomain.User{},
		&authdomain.Session{},
		&invitationdomain.MemberInvitation{},
		&otpdomain.Verification{},
	)
	dispatcher := notificationtest.NewAccepting()
	policies := token.NewPolicies(env.Policies)

	userRepo, sessionRepo := authrepo.New(env.DB)
	authSvc := authservice.New(authservice.Params{
		Log:         env.Log,
		Repo:        userRepo,
		SessionRepo: sessionRepo,
		GenID:       env.Node,
		Clock:       env.Clock,
	})
	orgSvc := orgservice.NewService(orgservice.Params{
		DB:         env.DB,
		Log:        env.Log,
		Repo:       orgrepo.NewRepository(env.DB),
		ProfileSvc: env.Profiles,
		Authz:      env.Authz,
		AuditSvc:   env.Audit,
		GenID:      env.Node,
		Clock:      env.Clock,
	})
	invitationSvc := invitationservice.NewService(invitationservice.Params{
		DB:         env.DB,
		Log:        env.Log,
		Config:     config.Config{BaseURL: "https://care.example"},
		Repo:       invitationrepo.NewRepository(env.DB),
		ProfileSvc: env.Profiles,
		OrgSvc:     orgSvc,
		Authz:      env.Authz,
		AuditSvc:   env.Audit,
		Dispatcher: dispatcher,
		Policies:   policies,
		GenID:      env.Node,
		Clock:      env.Clock,
	})
	otpSvc := otpservice.NewService(otpservice.Params{
		DB:         env.DB,
		Log:        env.Log,
		Repo:       otprepo.NewRepository(env.DB),
		ProfileSvc: env.Profiles,
		AuditSvc:   env.Audit,
		Dispatcher: dispatcher,
		Policies:   policies,
		GenID:      env.Node,
		Clock:      env.Clock,
	})

	return &fixture{
		env: env,
		signup: NewService(Params{
			DB:            env.DB,
			Log:           env.Log,
			AuthSvc:       authSvc,
			ProfileSvc:    env.Profiles,
			OrgSvc:        orgSvc,
			InvitationSvc: invitationSvc,
			OTPSvc:        otpSvc,
		}),
		auth:        authSvc,
		invitations: invitationSvc,
		otp:         otpSvc,
		dispatcher:  dispatcher,
	}
}

// The invited user signs up with the emailed token, lands in the inviting
// organization, and the token cannot be used again.
func TestSignupWithInvitation(t *testing.T) {
	f := newFixture(t)
	org, owner := f.env.SeedOrganization(t, "clinic", "owner@clinic.example")

	issued, err := f.invitations.Issue(testkit.As(owner.UserID), invitationdomain.IssueRequest{
		Email: "bob@x.com",
		Role:  profiledomain.RoleMember,
	})
	require.NoError(t, err)

	f.env.Clock.Advance(48 * time.Hour)
	res, err := f.signup.Signup(context.Background(), domain.Request{
		Email:           "Bob@X.com",
		Password:        "correct horse",
		FirstName:       "Bob",
		InvitationToken: issued.Token,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RawToken)
	require.NotNil(t, res.Organization)
	assert.Equal(t, org.ID, res.Organization.ID)
	require.NotNil(t, res.Profile.OrganizationID)
	assert.Equal(t, org.ID, *res.Profile.OrganizationID)
	assert.Equal(t, profiledomain.RoleMember, res.Profile.Role)
	require.NotNil(t, res.Invitation)
	assert.True(t, res.Invitation.IsUsed)

	session, err := f.auth.Authenticate(context.Background(), res.RawToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, session.UserID)

	assert.True(t, res.OTPSent)
	require.Len(t, f.dispatcher.Payloads(notificationdomain.KindOTP), 1)
	code, _ := f.dispatcher.Payloads(notificationdomain.KindOTP)[0]["code"].(string)
	_, err = f.otp.Verify(testkit.As(res.User.ID), code)
	require.NoError(t, err)

	lookup, err := f.invitations.Lookup(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.False(t, lookup.Valid)

	_, err = f.signup.Signup(context.Background(), domain.Request{
		Email:           "bob@x.com",
		Password:        "another password",
		InvitationToken: issued.Token,
	})
	assert.Equal(t, errs.KindAlreadyUsed, errs.KindOf(err))

	assert.Contains(t, f.env.AuditActions(t, org.ID), "invitation.accepted")
}

func TestSignupRejectsDeadInvitationBeforeCreatingUser(t *testing.T) {
	f := newFixture(t)
	_, owner := f.env.SeedOrganization(t, "clinic", "owner@clinic.example")
	issued, err := f.invitations.Issue(testkit.As(owner.UserID), invitationdomain.IssueRequest{
		Email: "bob@x.com",
		Role:  profiledomain.RoleViewer,
	})
	require.NoError(t, err)

	_, err = f.signup.Signup(context.Background(), domain.Request{
		Email:           "mallory@x.com",
		Password:        "correct horse",
		InvitationToken: issued.Token,
	})
	assert.Equal(t, errs.KindEmailMismatch, errs.KindOf(err))

	f.env.Clock.Advance(7 * 24 * time.Hour)
	_, err = f.signup.Signup(context.Background(), domain.Request{
		Email:           "bob@x.com",
		Password:        "correct horse",
		InvitationToken: issued.Token,
	})
	assert.Equal(t, errs.KindExpired, errs.KindOf(err))

	_, err = f.signup.Signup(context.Background(), domain.Request{
		Email:           "bob@x.com",
		Password:        "correct horse",
		InvitationToken: "AAAA-BBBB-CCCC-DDDD",
	})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	_, err = f.auth.FindByEmail(context.Background(), "bob@x.com")
	assert.ErrorIs(t, err, authdomain.ErrUserNotFound)
	_, err = f.auth.FindByEmail(context.Background(), "mallory@x.com")
	assert.ErrorIs(t, err, authdomain.ErrUserNotFound)
}

// A failure after the account row is written rolls the whole signup back.
func TestSignupRollsBackOnProfileCollision(t *testing.T) {
	f := newFixture(t)
	_, owner := f.env.SeedOrganization(t, "clinic", "owner@clinic.example")
	issued, err := f.invitations.Issue(testkit.As(owner.UserID), invitationdomain.IssueRequest{
		Email: "carol@x.com",
		Role:  profiledomain.RoleMember,
	})
	require.NoError(t, err)
	f.env.SeedUser(t, "carol@x.com")

	_, err = f.signup.Signup(context.Background(), domain.Request{
		Email:           "carol@x.com",
		Password:        "correct horse",
		InvitationToken: issued.Token,
	})
	assert.Equal(t, errs.KindAlreadyExists, errs.KindOf(err))

	_, err = f.auth.FindByEmail(context.Background(), "carol@x.com")
	assert.ErrorIs(t, err, authdomain.ErrUserNotFound)
	lookup, err := f.invitations.Lookup(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.True(t, lookup.Valid)
	assert.Empty(t, f.dispatcher.Payloads(notificationdomain.KindOTP))
}

func TestSignupFoundsOrganization(t *testing.T) {
	f := newFixture(t)

	res, err := f.signup.Signup(context.Background(), domain.Request{
		Email:            "carol@lab.example",
		Password:         "correct horse",
		OrganizationName: "North Lab",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Organization)
	assert.Equal(t, "North Lab", res.Organization.Name)
	assert.Equal(t, profiledomain.RoleOwner, res.Profile.Role)
	assert.Equal(t, profiledomain.OTPRequired, res.Profile.OTPRequirement)
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.signup.Signup(context.Background(), domain.Request{Email: "a@b.example"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.signup.Signup(context.Background(), domain.Request{
		Email:            "a@b.example",
		Password:         "correct horse",
		InvitationToken:  "AAAA-BBBB-CCCC-DDDD",
		OrganizationName: "Both",
	})
	assert.ErrorIs(t, err, domain.ErrConflictingIntent)

	_, err = f.signup.Signup(context.Background(), domain.Request{Email: "a@b.example", Password: "short"})
	assert.ErrorIs(t, err, authdomain.ErrWeakPassword)
}
