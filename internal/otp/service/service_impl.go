package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/carebridge/internal/audit/domain"
	"github.com/smallbiznis/carebridge/internal/clock"
	notificationdomain "github.com/smallbiznis/carebridge/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/carebridge/internal/observability/metrics"
	"github.com/smallbiznis/carebridge/internal/otp/domain"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"github.com/smallbiznis/carebridge/internal/ratelimit"
	"github.com/smallbiznis/carebridge/internal/token"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const workflow = "otp"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repo       domain.Repository
	ProfileSvc profiledomain.Service
	AuditSvc   auditdomain.Service
	Dispatcher notificationdomain.Dispatcher
	Policies   *token.Policies
	Guard      ratelimit.IssuanceGuard `optional:"true"`
	GenID      *snowflake.Node
	Clock      clock.Clock
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	profileSvc profiledomain.Service
	auditSvc   auditdomain.Service
	dispatcher notificationdomain.Dispatcher
	policies   *token.Policies
	guard      ratelimit.IssuanceGuard
	genID      *snowflake.Node
	clock      clock.Clock
	metrics    *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:         p.DB,
		log:        p.Log.Named("otp.service"),
		repo:       p.Repo,
		profileSvc: p.ProfileSvc,
		auditSvc:   p.AuditSvc,
		dispatcher: p.Dispatcher,
		policies:   p.Policies,
		guard:      ratelimit.OrNoop(p.Guard),
		genID:      p.GenID,
		clock:      p.Clock,
		metrics:    p.Metrics,
	}
}

func (s *service) Generate(ctx context.Context) (*domain.IssueResult, error) {
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return nil, err
	}
	release, err := s.guard.Acquire(ctx, "otp:"+profile.UserID.String())
	if err != nil {
		return nil, err
	}
	defer release()
	return s.issue(ctx, profile)
}

func (s *service) Resend(ctx context.Context) (*domain.IssueResult, error) {
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return nil, err
	}
	release, err := s.guard.Acquire(ctx, "otp:"+profile.UserID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	policy := s.policies.For(token.KindOTP)
	if policy.MaxIssuances > 0 {
		issued, err := s.repo.RecentIssuances(ctx, profile.UserID, policy.MaxIssuances)
		if err != nil {
			return nil, err
		}
		since := s.clock.Now().Add(-policy.IssuanceWindow)
		inWindow := 0
		for _, at := range issued {
			if at.After(since) {
				inWindow++
			}
		}
		if inWindow >= policy.MaxIssuances {
			s.metrics.RecordRateLimitDenied(ctx, "otp.resend", "issuance_window")
			return nil, domain.ErrRateLimited
		}
	}
	return s.issue(ctx, profile)
}

// issue replaces any live code. A code whose notification could not be
// scheduled is deleted so it never blocks a retry.
func (s *service) issue(ctx context.Context, profile *profiledomain.UserProfile) (*domain.IssueResult, error) {
	if profile.OTPRequirement != profiledomain.OTPRequired {
		return nil, domain.ErrNotRequired
	}

	code, err := token.Generate(token.KindOTP)
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	now := s.clock.Now()
	v := &domain.Verification{
		ID:        s.genID.Generate(),
		UserID:    profile.UserID,
		Code:      code,
		ExpiresAt: *s.policies.For(token.KindOTP).ExpiresAt(now),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Invalidate(ctx, profile.UserID, now); err != nil {
			return err
		}
		return repo.Create(ctx, v)
	})
	if err != nil {
		return nil, err
	}

	_, err = s.dispatcher.Schedule(ctx, notificationdomain.KindOTP, notificationdomain.Payload{
		"to":         profile.Email,
		"code":       code,
		"expires_at": v.ExpiresAt.Format(time.RFC1123),
	})
	if err != nil {
		s.metrics.RecordWorkflowFailure(ctx, workflow, "dispatch")
		if delErr := s.repo.Delete(ctx, v.ID); delErr != nil {
			s.log.Error("otp rollback failed", zap.String("otp_id", v.ID.String()), zap.Error(delErr))
		}
		return nil, fmt.Errorf("schedule otp notification: %w", err)
	}
	s.metrics.RecordTokenIssued(ctx, string(token.KindOTP))

	return &domain.IssueResult{ExpiresAt: v.ExpiresAt}, nil
}

func (s *service) Verify(ctx context.Context, code string) (*domain.VerifyResult, error) {
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.repo.Current(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	policy := s.policies.For(token.KindOTP)
	if policy.Evaluate(v, now).Reason == token.ReasonExpired {
		if err := s.repo.MarkUsed(ctx, v.ID, now); err != nil {
			return nil, err
		}
		s.metrics.RecordWorkflowFailure(ctx, workflow, "expired")
		return nil, domain.ErrCodeExpired
	}
	if policy.MaxAttempts > 0 && v.Attempts >= policy.MaxAttempts {
		if err := s.repo.MarkUsed(ctx, v.ID, now); err != nil {
			return nil, err
		}
		return nil, domain.ErrTooManyAttempts
	}

	submitted := token.Normalize(token.KindOTP, code)
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(v.Code)) != 1 {
		attempts, err := s.repo.IncrementAttempts(ctx, v.ID, now)
		if err != nil {
			return nil, err
		}
		if policy.MaxAttempts > 0 && attempts >= policy.MaxAttempts {
			if err := s.repo.MarkUsed(ctx, v.ID, now); err != nil {
				return nil, err
			}
			s.metrics.RecordWorkflowFailure(ctx, workflow, "too_many_attempts")
			return nil, domain.ErrTooManyAttempts
		}
		s.metrics.RecordWorkflowFailure(ctx, workflow, "invalid_code")
		return nil, domain.ErrInvalidCode
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).MarkVerified(ctx, v.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNoActiveCode
		}
		if err := s.profileSvc.WithTx(tx).SetOTPRequirement(ctx, profile.UserID, profiledomain.OTPNotRequired); err != nil {
			return err
		}
		targetID := profile.UserID.String()
		return s.auditSvc.WithTx(tx).AuditLog(ctx, profile.OrganizationID, "", nil, auditdomain.ActionOTPVerified, "user", &targetID, map[string]any{
			"attempts": v.Attempts + 1,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("otp verified", zap.String("user_id", profile.UserID.String()))
	return &domain.VerifyResult{Verified: true}, nil
}

func (s *service) Status(ctx context.Context) (*domain.StatusResult, error) {
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return nil, err
	}

	verified, err := s.repo.HasVerified(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}
	if verified {
		return &domain.StatusResult{State: domain.StateVerified}, nil
	}
	if profile.OTPRequirement != profiledomain.OTPRequired {
		return &domain.StatusResult{State: domain.StateLegacyExempt}, nil
	}

	v, err := s.repo.Current(ctx, profile.UserID)
	if errors.Is(err, domain.ErrNoActiveCode) {
		return &domain.StatusResult{State: domain.StateNeedsNewCode}, nil
	}
	if err != nil {
		return nil, err
	}
	policy := s.policies.For(token.KindOTP)
	if !policy.Evaluate(v, s.clock.Now()).Valid {
		return &domain.StatusResult{State: domain.StateNeedsNewCode}, nil
	}
	remaining := policy.MaxAttempts - v.Attempts
	if remaining < 0 {
		remaining = 0
	}
	return &domain.StatusResult{
		State:             domain.StatePending,
		ExpiresAt:         &v.ExpiresAt,
		AttemptsRemaining: remaining,
	}, nil
}
