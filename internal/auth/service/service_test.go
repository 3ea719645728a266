package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	authdomain "github.com/smallbiznis/carebridge/internal/auth/domain"
	"github.com/smallbiznis/carebridge/internal/auth/repository"
	"github.com/smallbiznis/carebridge/internal/clock"
	"github.com/smallbiznis/carebridge/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (authdomain.Service, *clock.FakeClock) {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&authdomain.User{}, &authdomain.Session{}))

	repo, sessionRepo := repository.New(dbConn)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	return New(Params{
		Log:         zap.NewNop(),
		Repo:        repo,
		SessionRepo: sessionRepo,
		GenID:       node,
		Clock:       clk,
	}), clk
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "alice@example.com",
		Password: "correct-password",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
}

func TestCreateUserLocalExternalIDUUID(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    " Bob@Example.com ",
		Password: "strong-password",
	})
	require.NoError(t, err)
	assert.Equal(t, "local", user.Provider)
	assert.Equal(t, "bob@example.com", user.Email)
	_, err = uuid.Parse(user.ExternalID)
	assert.NoError(t, err)
}

func TestCreateUserRejectsDuplicateAndWeakPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "carol@example.com", Password: "short"})
	assert.ErrorIs(t, err, authdomain.ErrWeakPassword)

	_, err = svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "carol@example.com", Password: "long-password"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "CAROL@example.com", Password: "long-password"})
	assert.ErrorIs(t, err, authdomain.ErrUserExists)
}

func TestLoginAuthenticateLogout(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "dan@example.com", Password: "dan-password"})
	require.NoError(t, err)

	res, err := svc.Login(ctx, authdomain.LoginRequest{Email: "dan@example.com", Password: "dan-password"})
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(defaultSessionTTL), res.ExpiresAt)

	sess, err := svc.Authenticate(ctx, res.RawToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.UserID)

	require.NoError(t, svc.Logout(ctx, res.RawToken))
	_, err = svc.Authenticate(ctx, res.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrSessionRevoked)
}

func TestAuthenticateExpiredSession(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "erin@example.com", Password: "erin-password"})
	require.NoError(t, err)
	res, err := svc.Login(ctx, authdomain.LoginRequest{Email: "erin@example.com", Password: "erin-password"})
	require.NoError(t, err)

	clk.Advance(defaultSessionTTL + time.Minute)
	_, err = svc.Authenticate(ctx, res.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrSessionExpired)
}

func TestRotateCredentialRevokesSessions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "fay@example.com", Password: "old-password"})
	require.NoError(t, err)
	res, err := svc.Login(ctx, authdomain.LoginRequest{Email: "fay@example.com", Password: "old-password"})
	require.NoError(t, err)

	require.NoError(t, svc.RotateCredential(ctx, "fay@example.com", "new-password"))

	_, err = svc.Authenticate(ctx, res.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrSessionRevoked)

	_, err = svc.Login(ctx, authdomain.LoginRequest{Email: "fay@example.com", Password: "old-password"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
	_, err = svc.Login(ctx, authdomain.LoginRequest{Email: "fay@example.com", Password: "new-password"})
	assert.NoError(t, err)
}
