package service

import (
	"context"
	"strings"

	authdomain "github.com/smallbiznis/carebridge/internal/auth/domain"
	"github.com/smallbiznis/carebridge/internal/identity"
	invitationdomain "github.com/smallbiznis/carebridge/internal/invitation/domain"
	orgdomain "github.com/smallbiznis/carebridge/internal/organization/domain"
	otpdomain "github.com/smallbiznis/carebridge/internal/otp/domain"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"github.com/smallbiznis/carebridge/internal/signup/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	AuthSvc       authdomain.Service
	ProfileSvc    profiledomain.Service
	OrgSvc        orgdomain.Service
	InvitationSvc invitationdomain.Service
	OTPSvc        otpdomain.Service `optional:"true"`
}

type service struct {
	db            *gorm.DB
	log           *zap.Logger
	authsvc       authdomain.Service
	profilesvc    profiledomain.Service
	orgsvc        orgdomain.Service
	invitationsvc invitationdomain.Service
	otpsvc        otpdomain.Service
}

func NewService(p Params) domain.Service {
	return &service{
		db:            p.DB,
		log:           p.Log.Named("signup.service"),
		authsvc:       p.AuthSvc,
		profilesvc:    p.ProfileSvc,
		orgsvc:        p.OrgSvc,
		invitationsvc: p.InvitationSvc,
		otpsvc:        p.OTPSvc,
	}
}

func (s *service) Signup(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidRequest
	}
	inviteToken := strings.TrimSpace(req.InvitationToken)
	orgName := strings.TrimSpace(req.OrganizationName)
	if inviteToken != "" && orgName != "" {
		return nil, domain.ErrConflictingIntent
	}

	// Reject a dead token before hashing the password.
	if inviteToken != "" {
		lookup, err := s.invitationsvc.Lookup(ctx, inviteToken)
		if err != nil {
			return nil, err
		}
		if err := lookupError(lookup, req.Email); err != nil {
			return nil, err
		}
	}

	displayName := strings.TrimSpace(strings.TrimSpace(req.FirstName) + " " + strings.TrimSpace(req.LastName))
	result := &domain.Result{}

	// The account, its profile and the membership commit together so a
	// failed join does not leave a half-onboarded user behind.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.authsvc.WithTx(tx).CreateUser(ctx, authdomain.CreateUserRequest{
			Email:       req.Email,
			Password:    req.Password,
			DisplayName: displayName,
		})
		if err != nil {
			return err
		}
		result.User = user

		if _, err := s.profilesvc.WithTx(tx).Create(ctx, profiledomain.CreateRequest{
			UserID:         user.ID,
			Email:          user.Email,
			FirstName:      req.FirstName,
			LastName:       req.LastName,
			OTPRequirement: profiledomain.OTPRequired,
		}); err != nil {
			return err
		}

		callerCtx := identity.WithUser(ctx, user.ID)
		orgsvc := s.orgsvc.WithTx(tx)
		switch {
		case inviteToken != "":
			inv, err := s.invitationsvc.WithTx(tx).Accept(callerCtx, inviteToken)
			if err != nil {
				return err
			}
			result.Invitation = inv
			result.Organization, err = orgsvc.GetByID(ctx, inv.OrganizationID)
			return err
		case orgName != "":
			result.Organization, err = orgsvc.Create(callerCtx, orgdomain.CreateOrganizationRequest{
				Name:  orgName,
				Email: user.Email,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	user := result.User

	login, err := s.authsvc.Login(ctx, authdomain.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		return nil, err
	}
	result.RawToken = login.RawToken
	result.ExpiresAt = login.ExpiresAt

	callerCtx := identity.WithUser(ctx, user.ID)
	if result.Profile, err = s.profilesvc.GetByUserID(ctx, user.ID); err != nil {
		return nil, err
	}

	if s.otpsvc != nil {
		if _, err := s.otpsvc.Generate(callerCtx); err != nil {
			s.log.Warn("initial otp not sent",
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
		} else {
			result.OTPSent = true
		}
	}

	s.log.Info("signup completed",
		zap.String("user_id", user.ID.String()),
		zap.Bool("invited", result.Invitation != nil),
		zap.Bool("founded_organization", orgName != ""),
	)
	return result, nil
}

func lookupError(lookup *invitationdomain.LookupResult, email string) error {
	if lookup.Valid {
		normalized, err := profiledomain.NormalizeEmail(email)
		if err != nil || normalized != lookup.Email {
			return invitationdomain.ErrEmailMismatch
		}
		return nil
	}
	switch lookup.Reason {
	case string(invitationdomain.StatusAccepted):
		return invitationdomain.ErrInvitationUsed
	case string(invitationdomain.StatusExpired):
		return invitationdomain.ErrInvitationExpired
	default:
		return invitationdomain.ErrInvitationNotFound
	}
}
