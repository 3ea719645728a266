package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/carebridge/internal/errs"
	notificationdomain "github.com/smallbiznis/carebridge/internal/notification/domain"
	"github.com/smallbiznis/carebridge/internal/notification/notificationtest"
	"github.com/smallbiznis/carebridge/internal/otp/domain"
	"github.com/smallbiznis/carebridge/internal/otp/repository"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"github.com/smallbiznis/carebridge/internal/testkit"
	"github.com/smallbiznis/carebridge/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc        domain.Service
	env        *testkit.Env
	dispatcher *notificationtest.Dispatcher
}

func newFixture(t *testing.T, dispatcher *notificationtest.Dispatcher) *fixture {
	t.Helper()
	env := testkit.New(t, &domain.Verification{})
	if dispatcher == nil {
		dispatcher = notificationtest.NewAccepting()
	}
	svc := NewService(Params{
		DB:         env.DB,
		Log:        env.Log,
		Repo:       repository.NewRepository(env.DB),
		ProfileSvc: env.Profiles,
		AuditSvc:   env.Audit,
		Dispatcher: dispatcher,
		Policies:   token.NewPolicies(env.Policies),
		GenID:      env.Node,
		Clock:      env.Clock,
	})
	return &fixture{svc: svc, env: env, dispatcher: dispatcher}
}

func (f *fixture) seed(t *testing.T, email string, req profiledomain.OTPRequirement) context.Context {
	t.Helper()
	profile, err := f.env.Profiles.Create(context.Background(), profiledomain.CreateRequest{
		UserID:         f.env.Node.Generate(),
		Email:          email,
		OTPRequirement: req,
	})
	require.NoError(t, err)
	return testkit.As(profile.UserID)
}

func (f *fixture) lastCode(t *testing.T) string {
	t.Helper()
	payloads := f.dispatcher.Payloads(notificationdomain.KindOTP)
	require.NotEmpty(t, payloads)
	code, _ := payloads[len(payloads)-1]["code"].(string)
	require.True(t, token.Matches(token.KindOTP, code), code)
	return code
}

// wrong returns a valid-looking code different from code.
func wrong(code string) string {
	if code == "111111" {
		return "222222"
	}
	return "111111"
}

func TestGenerateAndVerify(t *testing.T) {
	f := newFixture(t, nil)
	ctx := f.seed(t, "alice@clinic.example", profiledomain.OTPRequired)

	res, err := f.svc.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, testkit.Epoch.Add(10*time.Minute), res.ExpiresAt)

	status, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, status.State)
	assert.Equal(t, 5, status.AttemptsRemaining)

	verified, err := f.svc.Verify(ctx, " "+f.lastCode(t)+" ")
	require.NoError(t, err)
	assert.True(t, verified.Verified)

	profile, err := f.env.Profiles.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, profiledomain.OTPNotRequired, profile.OTPRequirement)

	status, err = f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateVerified, status.State)

	_, err = f.svc.Generate(ctx)
	assert.True(t, errors.Is(err, domain.ErrNotRequired))
}

func TestGenerateRequiresRequiredProfile(t *testing.T) {
	f := newFixture(t, nil)
	for _, req := range []profiledomain.OTPRequirement{profiledomain.OTPLegacy, profiledomain.OTPNotRequired} {
		ctx := f.seed(t, string(req)+"@clinic.example", req)

		_, err := f.svc.Generate(ctx)
		assert.Equal(t, errs.KindInvariantViolation, errs.KindOf(err))

		status, err := f.svc.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.StateLegacyExempt, status.State)
	}
	assert.Empty(t, f.dispatcher.Payloads(notificationdomain.KindOTP))
}

func TestFifthFailureInvalidatesCode(t *testing.T) {
	f := newFixture(t, nil)
	ctx := f.seed(t, "alice@clinic.example", profiledomain.OTPRequired)
	_, err := f.svc.Generate(ctx)
	require.NoError(t, err)
	code := f.lastCode(t)

	for i := 0; i < 4; i++ {
		_, err := f.svc.Verify(ctx, wrong(code))
		assert.Equal(t, errs.KindInvalidCode, errs.KindOf(err), "attempt %d", i+1)
	}
	status, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.AttemptsRemaining)

	_, err = f.svc.Verify(ctx, wrong(code))
	assert.Equal(t, errs.KindTooManyAttempts, errs.KindOf(err))

	_, err = f.svc.Verify(ctx, code)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	status, err = f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNeedsNewCode, status.State)
}

func TestExpiredCodeIsConsumed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := f.seed(t, "alice@clinic.example", profiledomain.OTPRequired)
	_, err := f.svc.Generate(ctx)
	require.NoError(t, err)
	code := f.lastCode(t)

	f.env.Clock.Advance(10 * time.Minute)
	status, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNeedsNewCode, status.State)

	_, err = f.svc.Verify(ctx, code)
	assert.Equal(t, errs.KindExpired, errs.KindOf(err))

	_, err = f.svc.Verify(ctx, code)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestRegenerateReplacesLiveCode(t *testing.T) {
	f := newFixture(t, nil)
	ctx := f.seed(t, "alice@clinic.example", profiledomain.OTPRequired)

	_, err := f.svc.Generate(ctx)
	require.NoError(t, err)
	first := f.lastCode(t)
	f.env.Clock.Advance(time.Second)
	_, err = f.svc.Generate(ctx)
	require.NoError(t, err)
	second := f.lastCode(t)

	var open int64
	require.NoError(t, f.env.DB.Model(&domain.Verification{}).Where("is_used = ?", false).Count(&open).Error)
	assert.EqualValues(t, 1, open)

	if first != second {
		_, err = f.svc.Verify(ctx, first)
		assert.Equal(t, errs.KindInvalidCode, errs.KindOf(err))
	}
	_, err = f.svc.Verify(ctx, second)
	assert.NoError(t, err)
}

func TestResendRateLimit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := f.seed(t, "alice@clinic.example", profiledomain.OTPRequired)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Resend(ctx)
		require.NoError(t, err, "issue %d", i+1)
		f.env.Clock.Advance(time.Minute)
	}
	_, err := f.svc.Resend(ctx)
	assert.Equal(t, errs.KindRateLimited, errs.KindOf(err))

	// The first issuance leaves the trailing window after five minutes.
	f.env.Clock.Advance(2*time.Minute + time.Second)
	_, err = f.svc.Resend(ctx)
	assert.NoError(t, err)
}

func TestDispatchFailureRollsBack(t *testing.T) {
	dispatcher := &notificationtest.Dispatcher{}
	dispatcher.On("Schedule", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("queue unavailable")).Once()
	dispatcher.On("Schedule", mock.Anything, mock.Anything, mock.Anything).Return("job-2", nil)
	f := newFixture(t, dispatcher)
	ctx := f.seed(t, "alice@clinic.example", profiledomain.OTPRequired)

	_, err := f.svc.Generate(ctx)
	require.Error(t, err)

	var count int64
	require.NoError(t, f.env.DB.Model(&domain.Verification{}).Count(&count).Error)
	assert.Zero(t, count)

	_, err = f.svc.Generate(ctx)
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, f.lastCode(t))
	assert.NoError(t, err)
}
