package token

import (
	"testing"
	"time"

	"github.com/smallbiznis/carebridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecord struct {
	expiresAt  *time.Time
	used       bool
	usedAt     *time.Time
	superseded bool
}

func (r fakeRecord) TokenExpiresAt() *time.Time { return r.expiresAt }
func (r fakeRecord) TokenUsed() bool            { return r.used }
func (r fakeRecord) TokenUsedAt() *time.Time    { return r.usedAt }
func (r fakeRecord) GraceEligible() bool        { return !r.superseded }

func at(t time.Time) *time.Time { return &t }

var now = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func TestEvaluateUnusedBeforeDeadline(t *testing.T) {
	p := NewPolicies(nil).For(KindInvitation)
	v := p.Evaluate(fakeRecord{expiresAt: at(now.Add(time.Hour))}, now)
	assert.Equal(t, Validity{Valid: true}, v)
}

func TestEvaluateExpiredWinsOverUsed(t *testing.T) {
	p := NewPolicies(nil).For(KindPasswordReset)
	v := p.Evaluate(fakeRecord{expiresAt: at(now), used: true, usedAt: at(now.Add(-time.Minute))}, now)
	assert.False(t, v.Valid)
	assert.Equal(t, ReasonExpired, v.Reason)
}

func TestEvaluateUsedWithoutGrace(t *testing.T) {
	p := NewPolicies(nil).For(KindInvitation)
	v := p.Evaluate(fakeRecord{expiresAt: at(now.Add(time.Hour)), used: true, usedAt: at(now)}, now)
	assert.False(t, v.Valid)
	assert.Equal(t, ReasonUsed, v.Reason)
}

func TestEvaluateResetGraceWindow(t *testing.T) {
	p := NewPolicies(nil).For(KindPasswordReset)
	exp := at(now.Add(30 * time.Minute))

	v := p.Evaluate(fakeRecord{expiresAt: exp, used: true, usedAt: at(now.Add(-4 * time.Minute))}, now)
	assert.True(t, v.Valid)
	assert.True(t, v.RecentlyUsed)

	v = p.Evaluate(fakeRecord{expiresAt: exp, used: true, usedAt: at(now.Add(-6 * time.Minute))}, now)
	assert.False(t, v.Valid)
	assert.Equal(t, ReasonUsed, v.Reason)
}

func TestEvaluateSupersededGetsNoGrace(t *testing.T) {
	p := NewPolicies(nil).For(KindPasswordReset)
	v := p.Evaluate(fakeRecord{expiresAt: at(now.Add(time.Hour)), used: true, usedAt: at(now), superseded: true}, now)
	assert.False(t, v.Valid)
}

func TestEvaluateNeverExpiring(t *testing.T) {
	p := NewPolicies(nil).For(KindShare)
	assert.Nil(t, p.ExpiresAt(now))
	assert.True(t, p.Evaluate(fakeRecord{}, now).Valid)
}

func TestPoliciesDefaults(t *testing.T) {
	ps := NewPolicies(nil)
	assert.Equal(t, 7*24*time.Hour, ps.For(KindInvitation).TTL)
	assert.Equal(t, 30*24*time.Hour, ps.For(KindPartnership).TTL)
	assert.Equal(t, time.Hour, ps.For(KindPasswordReset).TTL)
	otp := ps.For(KindOTP)
	assert.Equal(t, 10*time.Minute, otp.TTL)
	assert.Equal(t, 5, otp.MaxAttempts)
	assert.Equal(t, 3, otp.MaxIssuances)
}

func TestPoliciesFollowHolder(t *testing.T) {
	cfg := config.DefaultPolicyConfig()
	cfg.OTP.TTL = 2 * time.Minute
	ps := NewPolicies(config.NewStaticPolicyHolder(cfg))
	exp := ps.For(KindOTP).ExpiresAt(now)
	require.NotNil(t, exp)
	assert.Equal(t, now.Add(2*time.Minute), *exp)
}
