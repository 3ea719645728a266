package seed

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/carebridge/internal/auth/domain"
	orgdomain "github.com/smallbiznis/carebridge/internal/organization/domain"
	signupdomain "github.com/smallbiznis/carebridge/internal/signup/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type users struct {
	mock.Mock
}

func (m *users) FindByEmail(ctx context.Context, email string) (*authdomain.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*authdomain.User)
	return user, args.Error(1)
}

type signups struct {
	mock.Mock
}

func (m *signups) Signup(ctx context.Context, req signupdomain.Request) (*signupdomain.Result, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*signupdomain.Result)
	return result, args.Error(1)
}

func TestEnsureDemoClinicSignsUpOnce(t *testing.T) {
	ctx := context.Background()
	u := &users{}
	s := &signups{}

	u.On("FindByEmail", ctx, defaultAdminEmail).Return(nil, authdomain.ErrUserNotFound).Once()
	s.On("Signup", ctx, mock.MatchedBy(func(req signupdomain.Request) bool {
		return req.Email == defaultAdminEmail && req.OrganizationName == defaultOrgName && req.InvitationToken == ""
	})).Return(&signupdomain.Result{Organization: &orgdomain.Organization{ID: snowflake.ID(7)}}, nil).Once()
	require.NoError(t, EnsureDemoClinic(ctx, u, s, "demo-password", zap.NewNop()))

	u.On("FindByEmail", ctx, defaultAdminEmail).Return(&authdomain.User{Email: defaultAdminEmail}, nil).Once()
	require.NoError(t, EnsureDemoClinic(ctx, u, s, "demo-password", zap.NewNop()))

	s.AssertNumberOfCalls(t, "Signup", 1)
	u.AssertExpectations(t)
}

func TestEnsureDemoClinicSurfacesLookupErrors(t *testing.T) {
	ctx := context.Background()
	u := &users{}
	u.On("FindByEmail", ctx, defaultAdminEmail).Return(nil, assert.AnError)

	err := EnsureDemoClinic(ctx, u, &signups{}, "demo-password", zap.NewNop())
	assert.ErrorIs(t, err, assert.AnError)
}
