package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultPolicyConfigIsValid(t *testing.T) {
	cfg := DefaultPolicyConfig()
	require.NoError(t, ValidatePolicyConfig(cfg))
	assert.Equal(t, 7*24*time.Hour, cfg.Invitation.TTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Partnership.TTL)
	assert.Equal(t, time.Hour, cfg.PasswordReset.TTL)
	assert.Equal(t, 5*time.Minute, cfg.PasswordReset.Grace)
	assert.Equal(t, 10*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 5, cfg.OTP.MaxAttempts)
	assert.Equal(t, 3, cfg.OTP.MaxIssuances)
	assert.Equal(t, 5*time.Minute, cfg.OTP.IssuanceWindow)
}

func TestNewPolicyHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yml")
	content := []byte("tokens:\n  otp:\n    ttl: 15m\n    maxAttempts: 3\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	holder, err := NewPolicyHolder(Config{PolicyConfigPath: path}, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 15*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 3, cfg.OTP.MaxAttempts)
	assert.Equal(t, 3, cfg.OTP.MaxIssuances)
	assert.Equal(t, 7*24*time.Hour, cfg.Invitation.TTL)
}

func TestValidatePolicyConfigRejectsZeroTTL(t *testing.T) {
	cfg := DefaultPolicyConfig()
	cfg.Invitation.TTL = 0
	assert.Error(t, ValidatePolicyConfig(cfg))
}

func TestNilPolicyHolderFallsBackToDefaults(t *testing.T) {
	var holder *PolicyHolder
	assert.Equal(t, DefaultPolicyConfig(), holder.Get())
}
