package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/carebridge/internal/errs"
	notificationdomain "github.com/smallbiznis/carebridge/internal/notification/domain"
	"github.com/smallbiznis/carebridge/internal/notification/notificationtest"
	orgrepo "github.com/smallbiznis/carebridge/internal/organization/repository"
	orgservice "github.com/smallbiznis/carebridge/internal/organization/service"
	"github.com/smallbiznis/carebridge/internal/partnership/domain"
	"github.com/smallbiznis/carebridge/internal/partnership/repository"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"github.com/smallbiznis/carebridge/internal/testkit"
	"github.com/smallbiznis/carebridge/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, dispatcher notificationdomain.Dispatcher) (domain.Service, *testkit.Env) {
	t.Helper()
	env := testkit.New(t, &domain.Partnership{})
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
	return NewService(Params{
		DB:         env.DB,
		Log:        env.Log,
		Repo:       repository.NewRepository(env.DB),
		ProfileSvc: env.Profiles,
		OrgSvc:     orgSvc,
		Authz:      env.Authz,
		AuditSvc:   env.Audit,
		Dispatcher: dispatcher,
		Policies:   token.NewPolicies(env.Policies),
		GenID:      env.Node,
		Clock:      env.Clock,
	}), env
}

func TestCreateAndAccept(t *testing.T) {
	dispatcher := notificationtest.NewAccepting()
	svc, env := newTestService(t, dispatcher)
	clinic, clinicOwner := env.SeedOrganization(t, "clinic", "owner@clinic.example")
	lab, labOwner := env.SeedOrganization(t, "lab", "owner@lab.example")

	res, err := svc.Create(testkit.As(clinicOwner.UserID), domain.CreateRequest{PartnerEmail: "Owner@Lab.Example"})
	require.NoError(t, err)
	assert.True(t, token.Matches(token.KindPartnership, res.Token))
	assert.Equal(t, testkit.Epoch.Add(30*24*time.Hour), res.Partnership.ExpiresAt)
	assert.True(t, res.NotificationScheduled)

	payloads := dispatcher.Payloads(notificationdomain.KindPartnership)
	require.Len(t, payloads, 1)
	assert.Equal(t, "owner@lab.example", payloads[0].Recipient())
	assert.Equal(t, "clinic", payloads[0]["organization_name"])

	accepted, err := svc.Accept(testkit.As(labOwner.UserID), res.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.PartnerOrgID)
	assert.Equal(t, lab.ID, *accepted.PartnerOrgID)

	_, err = svc.Accept(testkit.As(labOwner.UserID), res.Token)
	assert.ErrorIs(t, err, errs.ErrAlreadyUsed)

	views, err := svc.List(testkit.As(clinicOwner.UserID))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.StatusAccepted, views[0].EffectiveStatus)
	assert.Equal(t, clinic.ID, views[0].RequestingOrgID)
}

func TestAcceptRules(t *testing.T) {
	svc, env := newTestService(t, notificationtest.NewAccepting())
	_, clinicOwner := env.SeedOrganization(t, "clinic", "owner@clinic.example")
	lab, labOwner := env.SeedOrganization(t, "lab", "owner@lab.example")
	labMember := env.SeedMember(t, lab.ID, "tech@lab.example", profiledomain.RoleMember)

	res, err := svc.Create(testkit.As(clinicOwner.UserID), domain.CreateRequest{})
	require.NoError(t, err)
	assert.False(t, res.NotificationScheduled)

	_, err = svc.Accept(testkit.As(clinicOwner.UserID), res.Token)
	assert.ErrorIs(t, err, errs.ErrInvariantViolation)

	_, err = svc.Accept(testkit.As(labMember.UserID), res.Token)
	assert.ErrorIs(t, err, errs.ErrInsufficientPermissions)

	_, err = svc.Accept(testkit.As(labOwner.UserID), "AAAAA-BBBBB-CCCCC-DDDDD")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	env.Clock.Advance(30*24*time.Hour + time.Second)
	_, err = svc.Accept(testkit.As(labOwner.UserID), res.Token)
	assert.ErrorIs(t, err, errs.ErrExpired)

	views, err := svc.List(testkit.As(clinicOwner.UserID))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.StatusPending, views[0].Status)
	assert.Equal(t, domain.StatusExpired, views[0].EffectiveStatus)
}

func TestRejectAndDuplicatePartners(t *testing.T) {
	svc, env := newTestService(t, notificationtest.NewAccepting())
	_, clinicOwner := env.SeedOrganization(t, "clinic", "owner@clinic.example")
	_, labOwner := env.SeedOrganization(t, "lab", "owner@lab.example")

	first, err := svc.Create(testkit.As(clinicOwner.UserID), domain.CreateRequest{})
	require.NoError(t, err)
	rejected, err := svc.Reject(testkit.As(labOwner.UserID), first.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)

	second, err := svc.Create(testkit.As(labOwner.UserID), domain.CreateRequest{})
	require.NoError(t, err)
	_, err = svc.Accept(testkit.As(clinicOwner.UserID), second.Token)
	require.NoError(t, err)

	third, err := svc.Create(testkit.As(clinicOwner.UserID), domain.CreateRequest{})
	require.NoError(t, err)
	_, err = svc.Accept(testkit.As(labOwner.UserID), third.Token)
	assert.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestCreateAbsorbsNotificationFailure(t *testing.T) {
	dispatcher := &notificationtest.Dispatcher{}
	dispatcher.On("Schedule", mock.Anything, notificationdomain.KindPartnership, mock.Anything).Return("", errors.New("outbox down"))
	svc, env := newTestService(t, dispatcher)
	_, owner := env.SeedOrganization(t, "clinic", "owner@clinic.example")

	res, err := svc.Create(testkit.As(owner.UserID), domain.CreateRequest{PartnerEmail: "lab@x.com"})
	require.NoError(t, err)
	assert.False(t, res.NotificationScheduled)
	assert.NotEmpty(t, res.Token)

	_, err = svc.List(context.Background())
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)
}
