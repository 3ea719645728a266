package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/carebridge/internal/audit/domain"
	"github.com/smallbiznis/carebridge/internal/authorization"
	"github.com/smallbiznis/carebridge/internal/clock"
	"github.com/smallbiznis/carebridge/internal/identity"
	"github.com/smallbiznis/carebridge/internal/organization/domain"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxSlugAttempts = 5

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repo       domain.Repository
	ProfileSvc profiledomain.Service
	Authz      authorization.Service
	AuditSvc   auditdomain.Service
	GenID      *snowflake.Node
	Clock      clock.Clock
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	profileSvc profiledomain.Service
	authz      authorization.Service
	auditSvc   auditdomain.Service
	genID      *snowflake.Node
	clock      clock.Clock
}

func NewService(p Params) domain.Service {
	return &service{
		db:         p.DB,
		log:        p.Log.Named("organization.service"),
		repo:       p.Repo,
		profileSvc: p.ProfileSvc,
		authz:      p.Authz,
		auditSvc:   p.AuditSvc,
		genID:      p.GenID,
		clock:      p.Clock,
	}
}

func (s *service) WithTx(tx *gorm.DB) domain.Service {
	clone := *s
	clone.db = tx
	clone.repo = s.repo.WithTx(tx)
	clone.profileSvc = s.profileSvc.WithTx(tx)
	clone.auditSvc = s.auditSvc.WithTx(tx)
	return &clone
}

func (s *service) Create(ctx context.Context, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return nil, err
	}
	if profile.HasOrganization() {
		return nil, domain.ErrAlreadyMember
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	orgID := s.genID.Generate()
	orgSlug, err := s.uniqueSlug(ctx, name, orgID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	org := &domain.Organization{
		ID:        orgID,
		Name:      name,
		Slug:      orgSlug,
		OwnerID:   profile.UserID,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     strings.TrimSpace(req.Phone),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateOrganization(ctx, org); err != nil {
			return err
		}
		if err := s.profileSvc.WithTx(tx).JoinOrganization(ctx, profile.UserID, orgID, profiledomain.RoleOwner); err != nil {
			return err
		}
		targetID := orgID.String()
		return s.auditSvc.WithTx(tx).AuditLog(ctx, &orgID, "", nil, auditdomain.ActionOrganizationCreated, "organization", &targetID, map[string]any{
			"slug": orgSlug,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("organization_id", orgID.String()),
		zap.String("owner_id", profile.UserID.String()),
	)
	return org, nil
}

func (s *service) GetCurrent(ctx context.Context) (*domain.Organization, error) {
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !profile.HasOrganization() {
		return nil, domain.ErrNoOrganization
	}
	return s.GetByID(ctx, *profile.OrganizationID)
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	org, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrganizationNotFound) {
			return nil, domain.ErrNoOrganization
		}
		return nil, err
	}
	return org, nil
}

func (s *service) ListMembers(ctx context.Context) ([]profiledomain.UserProfile, error) {
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !profile.HasOrganization() {
		return nil, domain.ErrNoOrganization
	}
	orgID := *profile.OrganizationID
	if err := s.authz.AuthorizeUser(ctx, profile.UserID, orgID, authorization.ObjectMember, authorization.ActionMemberView); err != nil {
		return nil, err
	}
	return s.profileSvc.ListMembers(ctx, orgID)
}

func (s *service) RemoveMember(ctx context.Context, userID snowflake.ID) error {
	callerID, err := identity.Current(ctx)
	if err != nil {
		return err
	}
	caller, err := s.profileSvc.GetByUserID(ctx, callerID)
	if err != nil {
		return err
	}
	if !caller.HasOrganization() {
		return domain.ErrNoOrganization
	}
	orgID := *caller.OrganizationID
	if err := s.authz.AuthorizeUser(ctx, callerID, orgID, authorization.ObjectMember, authorization.ActionMemberRemove); err != nil {
		return err
	}
	if userID == callerID {
		return domain.ErrCannotRemoveSelf
	}

	target, err := s.profileSvc.GetByUserID(ctx, userID)
	if err != nil || !target.InOrganization(orgID) {
		return domain.ErrMemberNotFound
	}
	if target.Role == profiledomain.RoleOwner {
		return domain.ErrCannotRemoveOwner
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.profileSvc.WithTx(tx).LeaveOrganization(ctx, userID); err != nil {
			return err
		}
		targetID := userID.String()
		return s.auditSvc.WithTx(tx).AuditLog(ctx, &orgID, "", nil, auditdomain.ActionMemberRemoved, "user", &targetID, map[string]any{
			"role": string(target.Role),
		})
	})
}

func (s *service) uniqueSlug(ctx context.Context, name string, orgID snowflake.ID) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "organization"
	}
	candidate := base
	suffix := orgID.Base36()
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		taken, err := s.repo.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		start := len(suffix) - 4 - attempt
		if start < 0 {
			start = 0
		}
		candidate = fmt.Sprintf("%s-%s", base, suffix[start:])
	}
	return fmt.Sprintf("%s-%s", base, suffix), nil
}
