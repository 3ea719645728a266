package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/errs"
	"github.com/smallbiznis/carebridge/internal/patient/domain"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"github.com/smallbiznis/carebridge/internal/testkit"
	"github.com/smallbiznis/carebridge/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type accessChecker struct {
	mock.Mock
}

func (m *accessChecker) CheckAccess(ctx context.Context, patientID snowflake.ID, permission string) (bool, error) {
	args := m.Called(ctx, patientID, permission)
	return args.Bool(0), args.Error(1)
}

func newTestService(t *testing.T, access domain.AccessChecker) (domain.Service, *testkit.Env) {
	t.Helper()
	env := testkit.New(t, &domain.Patient{})
	p := Params{
		Log:        env.Log,
		Store:      repository.ProvideStore[domain.Patient](env.DB),
		ProfileSvc: env.Profiles,
		Authz:      env.Authz,
		GenID:      env.Node,
		Clock:      env.Clock,
	}
	if access != nil {
		p.Access = access
	}
	return NewService(p), env
}

func TestCreateAndGetWithinOrganization(t *testing.T) {
	svc, env := newTestService(t, nil)
	org, _ := env.SeedOrganization(t, "clinic", "owner@clinic.example")
	nurse := env.SeedMember(t, org.ID, "nurse@clinic.example", profiledomain.RoleMember)
	viewer := env.SeedMember(t, org.ID, "viewer@clinic.example", profiledomain.RoleViewer)

	patient, err := svc.Create(testkit.As(nurse.UserID), domain.CreateRequest{
		FirstName:           " Jane ",
		LastName:            "Doe",
		MedicalRecordNumber: "MRN-001",
	})
	require.NoError(t, err)
	assert.Equal(t, org.ID, patient.OrganizationID)
	assert.Equal(t, "Jane Doe", patient.FullName())
	assert.Equal(t, nurse.UserID, patient.CreatedBy)

	got, err := svc.Get(testkit.As(viewer.UserID), patient.ID)
	require.NoError(t, err)
	assert.Equal(t, patient.ID, got.ID)

	_, err = svc.Create(testkit.As(viewer.UserID), domain.CreateRequest{FirstName: "A", LastName: "B"})
	assert.Equal(t, errs.KindInsufficientPermissions, errs.KindOf(err))
}

func TestCreateValidation(t *testing.T) {
	svc, env := newTestService(t, nil)
	_, owner := env.SeedOrganization(t, "clinic", "owner@clinic.example")
	loner := env.SeedUser(t, "loner@x.example")

	_, err := svc.Create(testkit.As(owner.UserID), domain.CreateRequest{FirstName: "Jane"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(testkit.As(loner.UserID), domain.CreateRequest{FirstName: "Jane", LastName: "Doe"})
	assert.ErrorIs(t, err, domain.ErrNoOrganization)

	_, err = svc.Create(context.Background(), domain.CreateRequest{FirstName: "Jane", LastName: "Doe"})
	assert.Equal(t, errs.KindUnauthenticated, errs.KindOf(err))
}

func TestGetAcrossOrganizations(t *testing.T) {
	access := &accessChecker{}
	svc, env := newTestService(t, access)
	_, owner := env.SeedOrganization(t, "clinic", "owner@clinic.example")
	_, labOwner := env.SeedOrganization(t, "lab", "owner@lab.example")

	patient, err := svc.Create(testkit.As(owner.UserID), domain.CreateRequest{FirstName: "Jane", LastName: "Doe"})
	require.NoError(t, err)

	access.On("CheckAccess", mock.Anything, patient.ID, "view").Return(false, nil).Once()
	_, err = svc.Get(testkit.As(labOwner.UserID), patient.ID)
	assert.ErrorIs(t, err, domain.ErrPatientNotFound)

	access.On("CheckAccess", mock.Anything, patient.ID, "view").Return(true, nil).Once()
	got, err := svc.Get(testkit.As(labOwner.UserID), patient.ID)
	require.NoError(t, err)
	assert.Equal(t, patient.ID, got.ID)

	_, err = svc.Get(testkit.As(owner.UserID), env.Node.Generate())
	assert.ErrorIs(t, err, domain.ErrPatientNotFound)
	access.AssertExpectations(t)
}
