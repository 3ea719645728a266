package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/clock"
	"github.com/smallbiznis/carebridge/internal/errs"
	"github.com/smallbiznis/carebridge/internal/identity"
	"github.com/smallbiznis/carebridge/internal/profile/domain"
	"github.com/smallbiznis/carebridge/internal/profile/repository"
	"github.com/smallbiznis/carebridge/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.UserProfile{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	return NewService(zap.NewNop(), repository.NewRepository(conn), node, clk)
}

func TestCreateNormalizesEmailAndDefaultsLegacy(t *testing.T) {
	svc := newTestService(t)

	profile, err := svc.Create(context.Background(), domain.CreateRequest{
		UserID: 42,
		Email:  "  Dana@Clinic.Example ",
	})
	require.NoError(t, err)
	assert.Equal(t, "dana@clinic.example", profile.Email)
	assert.Equal(t, domain.OTPLegacy, profile.OTPRequirement)
	assert.Equal(t, domain.RoleMember, profile.Role)
	assert.False(t, profile.HasOrganization())
	assert.False(t, profile.ProfileCompleted)

	_, err = svc.Create(context.Background(), domain.CreateRequest{UserID: 43, Email: "dana@clinic.example"})
	assert.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestCurrentRequiresIdentity(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Current(context.Background())
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)

	_, err = svc.Current(identity.WithUser(context.Background(), 7))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestJoinAndLeaveOrganization(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{UserID: 42, Email: "eve@example.com"})
	require.NoError(t, err)

	require.NoError(t, svc.JoinOrganization(ctx, 42, 900, domain.RoleAdmin))
	profile, err := svc.GetByUserID(ctx, 42)
	require.NoError(t, err)
	assert.True(t, profile.InOrganization(900))
	assert.Equal(t, domain.RoleAdmin, profile.Role)
	assert.True(t, profile.SetupCompleted)

	members, err := svc.ListMembers(ctx, 900)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	require.NoError(t, svc.LeaveOrganization(ctx, 42))
	profile, err = svc.GetByUserID(ctx, 42)
	require.NoError(t, err)
	assert.False(t, profile.HasOrganization())

	assert.ErrorIs(t, svc.JoinOrganization(ctx, 42, 900, domain.Role("superuser")), errs.ErrInvalidArgument)
	assert.ErrorIs(t, svc.JoinOrganization(ctx, 99, 900, domain.RoleMember), errs.ErrNotFound)
}

func TestUpdateMarksProfileCompleted(t *testing.T) {
	svc := newTestService(t)
	ctx := identity.WithUser(context.Background(), 42)

	_, err := svc.Create(ctx, domain.CreateRequest{UserID: 42, Email: "finn@example.com", FirstName: "Finn"})
	require.NoError(t, err)

	last := "Mertens"
	profile, err := svc.Update(ctx, domain.UpdateRequest{LastName: &last})
	require.NoError(t, err)
	assert.True(t, profile.ProfileCompleted)
	assert.Equal(t, "Finn Mertens", profile.FullName())
}

func TestFindByEmailHidesMissingProfiles(t *testing.T) {
	svc := newTestService(t)

	profile, err := svc.FindByEmail(context.Background(), "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, profile)

	profile, err = svc.FindByEmail(context.Background(), "not an email")
	assert.NoError(t, err)
	assert.Nil(t, profile)
}

func TestOTPRequirementFlagRoundTrip(t *testing.T) {
	yes, no := true, false
	assert.Equal(t, domain.OTPRequired, domain.OTPRequirementFromFlag(&yes))
	assert.Equal(t, domain.OTPNotRequired, domain.OTPRequirementFromFlag(&no))
	assert.Equal(t, domain.OTPLegacy, domain.OTPRequirementFromFlag(nil))
	assert.Nil(t, domain.OTPLegacy.Flag())
	assert.True(t, *domain.OTPRequired.Flag())
}
