package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/carebridge/internal/audit/domain"
	"github.com/smallbiznis/carebridge/internal/auth/password"
	"github.com/smallbiznis/carebridge/internal/clock"
	"github.com/smallbiznis/carebridge/internal/config"
	notificationdomain "github.com/smallbiznis/carebridge/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/carebridge/internal/observability/metrics"
	"github.com/smallbiznis/carebridge/internal/passwordreset/domain"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"github.com/smallbiznis/carebridge/internal/ratelimit"
	"github.com/smallbiznis/carebridge/internal/token"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const workflow = "password_reset"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Config     config.Config `optional:"true"`
	Repo       domain.Repository
	ProfileSvc profiledomain.Service
	AuditSvc   auditdomain.Service
	Dispatcher notificationdomain.Dispatcher
	Policies   *token.Policies
	Guard      ratelimit.IssuanceGuard  `optional:"true"`
	Rotator    domain.CredentialRotator `optional:"true"`
	GenID      *snowflake.Node
	Clock      clock.Clock
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	baseURL    string
	repo       domain.Repository
	profileSvc profiledomain.Service
	auditSvc   auditdomain.Service
	dispatcher notificationdomain.Dispatcher
	policies   *token.Policies
	guard      ratelimit.IssuanceGuard
	rotator    domain.CredentialRotator
	genID      *snowflake.Node
	clock      clock.Clock
	metrics    *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:         p.DB,
		log:        p.Log.Named("passwordreset.service"),
		baseURL:    p.Config.BaseURL,
		repo:       p.Repo,
		profileSvc: p.ProfileSvc,
		auditSvc:   p.AuditSvc,
		dispatcher: p.Dispatcher,
		policies:   p.Policies,
		guard:      ratelimit.OrNoop(p.Guard),
		rotator:    p.Rotator,
		genID:      p.GenID,
		clock:      p.Clock,
		metrics:    p.Metrics,
	}
}

func (s *service) Request(ctx context.Context, email string) (*domain.RequestResult, error) {
	generic := &domain.RequestResult{Message: domain.RequestMessage}

	normalized, err := profiledomain.NormalizeEmail(email)
	if err != nil {
		return generic, nil
	}

	release, err := s.guard.Acquire(ctx, "reset:"+normalized)
	if err != nil {
		return nil, err
	}
	defer release()

	profile, err := s.profileSvc.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		s.log.Debug("password reset requested for unknown email")
		return generic, nil
	}

	code, err := token.GenerateUnique(ctx, token.KindPasswordReset, s.repo.TokenExists)
	if err != nil {
		return nil, fmt.Errorf("generate reset token: %w", err)
	}

	now := s.clock.Now()
	rec := &domain.ResetToken{
		ID:        s.genID.Generate(),
		Email:     normalized,
		Token:     code,
		ExpiresAt: *s.policies.For(token.KindPasswordReset).ExpiresAt(now),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		superseded, err := repo.Supersede(ctx, normalized, now)
		if err != nil {
			return err
		}
		if err := repo.Create(ctx, rec); err != nil {
			return err
		}
		targetID := rec.ID.String()
		return s.auditSvc.WithTx(tx).AuditLog(ctx, profile.OrganizationID, "", nil, auditdomain.ActionPasswordResetRequested, "password_reset", &targetID, map[string]any{
			"email":      normalized,
			"superseded": superseded,
			"token":      code,
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIssued(ctx, string(token.KindPasswordReset))

	_, err = s.dispatcher.Schedule(ctx, notificationdomain.KindPasswordReset, notificationdomain.Payload{
		"to":         normalized,
		"email":      normalized,
		"link":       s.baseURL + "/auth/password/reset/" + code,
		"expires_at": rec.ExpiresAt.Format(time.RFC1123),
	})
	if err != nil {
		s.log.Warn("password reset notification not scheduled",
			zap.String("reset_id", rec.ID.String()),
			zap.Error(err),
		)
	}
	return generic, nil
}

func (s *service) Verify(ctx context.Context, code string) (*domain.VerifyResult, error) {
	rec, err := s.find(ctx, code)
	if errors.Is(err, domain.ErrTokenNotFound) {
		return &domain.VerifyResult{Error: "not_found"}, nil
	}
	if err != nil {
		return nil, err
	}

	v := s.policies.For(token.KindPasswordReset).Evaluate(rec, s.clock.Now())
	if !v.Valid {
		return &domain.VerifyResult{Error: string(v.Reason)}, nil
	}
	return &domain.VerifyResult{Valid: true, Email: rec.Email, RecentlyUsed: v.RecentlyUsed}, nil
}

func (s *service) Complete(ctx context.Context, req domain.CompleteRequest) (*domain.CompleteResult, error) {
	rec, err := s.find(ctx, req.Token)
	if err != nil {
		s.metrics.RecordWorkflowFailure(ctx, workflow, "not_found")
		return nil, err
	}

	now := s.clock.Now()
	v := s.policies.For(token.KindPasswordReset).Evaluate(rec, now)
	switch v.Reason {
	case token.ReasonExpired:
		s.metrics.RecordWorkflowFailure(ctx, workflow, "expired")
		return nil, domain.ErrTokenExpired
	case token.ReasonUsed:
		s.metrics.RecordWorkflowFailure(ctx, workflow, "used")
		return nil, domain.ErrTokenUsed
	}
	if !password.Acceptable(req.NewPassword) {
		return nil, domain.ErrWeakPassword
	}

	profile, err := s.profileSvc.FindByEmail(ctx, rec.Email)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrAccountNotFound
	}

	hashed, err := password.Hash(req.NewPassword)
	if err != nil {
		return nil, err
	}

	// A resubmission inside the grace window keeps the first use time so
	// the window does not slide.
	usedAt := now
	if v.RecentlyUsed && rec.UsedAt != nil {
		usedAt = *rec.UsedAt
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Complete(ctx, rec.ID, hashed, usedAt, now); err != nil {
			return err
		}
		targetID := rec.ID.String()
		return s.auditSvc.WithTx(tx).AuditLog(ctx, profile.OrganizationID, "", nil, auditdomain.ActionPasswordResetCompleted, "password_reset", &targetID, map[string]any{
			"email":        rec.Email,
			"resubmission": v.RecentlyUsed,
		})
	})
	if err != nil {
		return nil, err
	}

	res := &domain.CompleteResult{Success: true, Email: rec.Email}
	if s.rotator != nil {
		if err := s.rotator.RotateCredential(ctx, rec.Email, req.NewPassword); err != nil {
			s.log.Error("credential rotation failed",
				zap.String("reset_id", rec.ID.String()),
				zap.Error(err),
			)
			return nil, err
		}
		res.CredentialRotated = true
	}

	s.log.Info("password reset completed",
		zap.String("reset_id", rec.ID.String()),
		zap.Bool("resubmission", v.RecentlyUsed),
	)
	return res, nil
}

func (s *service) find(ctx context.Context, code string) (*domain.ResetToken, error) {
	normalized := token.Normalize(token.KindPasswordReset, code)
	if !token.Matches(token.KindPasswordReset, normalized) {
		return nil, domain.ErrTokenNotFound
	}
	return s.repo.FindByToken(ctx, normalized)
}
