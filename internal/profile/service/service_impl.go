package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/clock"
	"github.com/smallbiznis/carebridge/internal/errs"
	"github.com/smallbiznis/carebridge/internal/identity"
	"github.com/smallbiznis/carebridge/internal/profile/domain"
	"github.com/smallbiznis/carebridge/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errProfileNotFound = errs.New(errs.KindNotFound, "profile not found")

type service struct {
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(log *zap.Logger, repo domain.Repository, genID *snowflake.Node, clk clock.Clock) domain.Service {
	return &service{
		log:   log.Named("profile.service"),
		repo:  repo,
		genID: genID,
		clock: clk,
	}
}

func (s *service) WithTx(tx *gorm.DB) domain.Service {
	clone := *s
	clone.repo = s.repo.WithTx(tx)
	return &clone
}

func (s *service) Current(ctx context.Context) (*domain.UserProfile, error) {
	userID, err := identity.Current(ctx)
	if err != nil {
		return nil, err
	}
	return s.GetByUserID(ctx, userID)
}

func (s *service) GetByUserID(ctx context.Context, userID snowflake.ID) (*domain.UserProfile, error) {
	profile, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return nil, errProfileNotFound
		}
		return nil, err
	}
	return profile, nil
}

func (s *service) FindByEmail(ctx context.Context, email string) (*domain.UserProfile, error) {
	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		return nil, nil
	}
	profile, err := s.repo.FindByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return profile, nil
}

func (s *service) Create(ctx context.Context, req domain.CreateRequest) (*domain.UserProfile, error) {
	if req.UserID == 0 {
		return nil, errs.New(errs.KindInvalidArgument, "user id is required")
	}
	email, err := domain.NormalizeEmail(req.Email)
	if err != nil {
		return nil, errs.New(errs.KindInvalidArgument, "invalid email address")
	}

	requirement := req.OTPRequirement
	if requirement == "" {
		requirement = domain.OTPLegacy
	}

	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	now := s.clock.Now()
	profile := &domain.UserProfile{
		ID:               s.genID.Generate(),
		UserID:           req.UserID,
		Email:            email,
		FirstName:        firstName,
		LastName:         lastName,
		Role:             domain.RoleMember,
		ProfileCompleted: firstName != "" && lastName != "",
		OTPRequirement:   requirement,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, errs.New(errs.KindAlreadyExists, "a profile with this email already exists")
		}
		return nil, err
	}
	return profile, nil
}

func (s *service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.UserProfile, error) {
	profile, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.FirstName != nil {
		profile.FirstName = strings.TrimSpace(*req.FirstName)
		fields["first_name"] = profile.FirstName
	}
	if req.LastName != nil {
		profile.LastName = strings.TrimSpace(*req.LastName)
		fields["last_name"] = profile.LastName
	}
	if len(fields) == 0 {
		return profile, nil
	}

	profile.ProfileCompleted = profile.FirstName != "" && profile.LastName != ""
	profile.UpdatedAt = s.clock.Now()
	fields["profile_completed"] = profile.ProfileCompleted
	fields["updated_at"] = profile.UpdatedAt
	if err := s.repo.UpdateFields(ctx, profile.UserID, fields); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *service) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.UserProfile, error) {
	if orgID == 0 {
		return nil, errs.New(errs.KindInvalidArgument, "organization id is required")
	}
	return s.repo.ListByOrganization(ctx, orgID)
}

func (s *service) JoinOrganization(ctx context.Context, userID, orgID snowflake.ID, role domain.Role) error {
	if !role.Valid() {
		return errs.New(errs.KindInvalidArgument, "invalid role")
	}
	err := s.repo.UpdateFields(ctx, userID, map[string]any{
		"organization_id": orgID,
		"role":            role,
		"setup_completed": true,
		"updated_at":      s.clock.Now(),
	})
	if errors.Is(err, domain.ErrProfileNotFound) {
		return errProfileNotFound
	}
	return err
}

func (s *service) LeaveOrganization(ctx context.Context, userID snowflake.ID) error {
	err := s.repo.UpdateFields(ctx, userID, map[string]any{
		"organization_id": nil,
		"role":            domain.RoleMember,
		"updated_at":      s.clock.Now(),
	})
	if errors.Is(err, domain.ErrProfileNotFound) {
		return errProfileNotFound
	}
	return err
}

func (s *service) SetOTPRequirement(ctx context.Context, userID snowflake.ID, requirement domain.OTPRequirement) error {
	switch requirement {
	case domain.OTPRequired, domain.OTPNotRequired, domain.OTPLegacy:
	default:
		return errs.New(errs.KindInvalidArgument, "invalid otp requirement")
	}
	err := s.repo.UpdateFields(ctx, userID, map[string]any{
		"otp_requirement": requirement,
		"updated_at":      s.clock.Now(),
	})
	if errors.Is(err, domain.ErrProfileNotFound) {
		return errProfileNotFound
	}
	return err
}
