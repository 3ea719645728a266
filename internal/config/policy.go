package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// TokenPolicy carries the validity parameters of one token kind.
type TokenPolicy struct {
	TTL            time.Duration `mapstructure:"ttl"`
	Grace          time.Duration `mapstructure:"grace"`
	MaxAttempts    int           `mapstructure:"maxAttempts"`
	MaxIssuances   int           `mapstructure:"maxIssuances"`
	IssuanceWindow time.Duration `mapstructure:"issuanceWindow"`
}

type PolicyConfig struct {
	Invitation    TokenPolicy `mapstructure:"invitation"`
	Partnership   TokenPolicy `mapstructure:"partnership"`
	Share         TokenPolicy `mapstructure:"share"`
	PasswordReset TokenPolicy `mapstructure:"passwordReset"`
	OTP           TokenPolicy `mapstructure:"otp"`
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Invitation:    TokenPolicy{TTL: 7 * 24 * time.Hour},
		Partnership:   TokenPolicy{TTL: 30 * 24 * time.Hour},
		Share:         TokenPolicy{},
		PasswordReset: TokenPolicy{TTL: time.Hour, Grace: 5 * time.Minute},
		OTP: TokenPolicy{
			TTL:            10 * time.Minute,
			MaxAttempts:    5,
			MaxIssuances:   3,
			IssuanceWindow: 5 * time.Minute,
		},
	}
}

// PolicyHolder serves the current token policies and swaps them when
// the backing policy.yml changes on disk.
type PolicyHolder struct {
	current atomic.Value // holds PolicyConfig
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(cfg PolicyConfig) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewPolicyHolder(appCfg Config, log *zap.Logger) (*PolicyHolder, error) {
	log = log.Named("config.policy")
	v := viper.New()

	if appCfg.PolicyConfigPath != "" {
		v.SetConfigFile(appCfg.PolicyConfigPath)
	} else {
		v.SetConfigName("policy")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/carebridge")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CAREBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicyConfig()
	setPolicyDefaults(v, "tokens.invitation", defaults.Invitation)
	setPolicyDefaults(v, "tokens.partnership", defaults.Partnership)
	setPolicyDefaults(v, "tokens.share", defaults.Share)
	setPolicyDefaults(v, "tokens.passwordReset", defaults.PasswordReset)
	setPolicyDefaults(v, "tokens.otp", defaults.OTP)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodePolicy(v)
	if err != nil {
		return nil, err
	}
	if err := ValidatePolicyConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(cfg)
	if !fileLoaded {
		log.Info("policy config not found, using defaults")
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePolicy(v)
		if err != nil {
			log.Warn("policy reload failed", zap.Error(err))
			return
		}
		if err := ValidatePolicyConfig(updated); err != nil {
			log.Warn("invalid policy config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("policy config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

func (h *PolicyHolder) Get() PolicyConfig {
	if h == nil {
		return DefaultPolicyConfig()
	}
	return h.current.Load().(PolicyConfig)
}

func ValidatePolicyConfig(cfg PolicyConfig) error {
	checks := map[string]TokenPolicy{
		"invitation":    cfg.Invitation,
		"partnership":   cfg.Partnership,
		"passwordReset": cfg.PasswordReset,
		"otp":           cfg.OTP,
	}
	for name, p := range checks {
		if p.TTL <= 0 {
			return fmt.Errorf("tokens.%s.ttl must be positive", name)
		}
		if p.Grace < 0 || p.MaxAttempts < 0 || p.MaxIssuances < 0 || p.IssuanceWindow < 0 {
			return fmt.Errorf("tokens.%s limits cannot be negative", name)
		}
	}
	if cfg.Share.TTL < 0 {
		return errors.New("tokens.share.ttl cannot be negative")
	}
	return nil
}

// decodePolicy goes through Unmarshal rather than UnmarshalKey so nested
// defaults merge with partially specified files.
func decodePolicy(v *viper.Viper) (PolicyConfig, error) {
	var wrapper struct {
		Tokens PolicyConfig `mapstructure:"tokens"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return PolicyConfig{}, err
	}
	return wrapper.Tokens, nil
}

func setPolicyDefaults(v *viper.Viper, prefix string, p TokenPolicy) {
	v.SetDefault(prefix+".ttl", p.TTL)
	v.SetDefault(prefix+".grace", p.Grace)
	v.SetDefault(prefix+".maxAttempts", p.MaxAttempts)
	v.SetDefault(prefix+".maxIssuances", p.MaxIssuances)
	v.SetDefault(prefix+".issuanceWindow", p.IssuanceWindow)
}
