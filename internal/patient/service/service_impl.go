package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/authorization"
	"github.com/smallbiznis/carebridge/internal/clock"
	"github.com/smallbiznis/carebridge/internal/patient/domain"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"github.com/smallbiznis/carebridge/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const permissionView = "view"

type Params struct {
	fx.In

	Log        *zap.Logger
	Store      repository.Repository[domain.Patient]
	ProfileSvc profiledomain.Service
	Authz      authorization.Service
	Access     domain.AccessChecker `optional:"true"`
	GenID      *snowflake.Node
	Clock      clock.Clock
}

type service struct {
	log        *zap.Logger
	store      repository.Repository[domain.Patient]
	profileSvc profiledomain.Service
	authz      authorization.Service
	access     domain.AccessChecker
	genID      *snowflake.Node
	clock      clock.Clock
}

func NewService(p Params) domain.Service {
	return &service{
		log:        p.Log.Named("patient.service"),
		store:      p.Store,
		profileSvc: p.ProfileSvc,
		authz:      p.Authz,
		access:     p.Access,
		genID:      p.GenID,
		clock:      p.Clock,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Patient, error) {
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !profile.HasOrganization() {
		return nil, domain.ErrNoOrganization
	}
	orgID := *profile.OrganizationID
	if err := s.authz.AuthorizeUser(ctx, profile.UserID, orgID, authorization.ObjectPatient, authorization.ActionPatientCreate); err != nil {
		return nil, err
	}

	first := strings.TrimSpace(req.FirstName)
	last := strings.TrimSpace(req.LastName)
	if first == "" || last == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now()
	patient := &domain.Patient{
		ID:                  s.genID.Generate(),
		OrganizationID:      orgID,
		FirstName:           first,
		LastName:            last,
		DateOfBirth:         req.DateOfBirth,
		MedicalRecordNumber: strings.TrimSpace(req.MedicalRecordNumber),
		CreatedBy:           profile.UserID,
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.store.Create(ctx, patient); err != nil {
		return nil, err
	}
	s.log.Info("patient created",
		zap.String("patient_id", patient.ID.String()),
		zap.String("organization_id", orgID.String()),
	)
	return patient, nil
}

func (s *service) Get(ctx context.Context, id snowflake.ID) (*domain.Patient, error) {
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return nil, err
	}
	patient, err := s.store.FindOne(ctx, &domain.Patient{ID: id, IsActive: true})
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, domain.ErrPatientNotFound
	}

	if profile.InOrganization(patient.OrganizationID) {
		if err := s.authz.AuthorizeUser(ctx, profile.UserID, patient.OrganizationID, authorization.ObjectPatient, authorization.ActionPatientView); err != nil {
			return nil, err
		}
		return patient, nil
	}

	if s.access != nil {
		ok, err := s.access.CheckAccess(ctx, id, permissionView)
		if err != nil {
			return nil, err
		}
		if ok {
			return patient, nil
		}
	}
	// Outsiders without a grant cannot tell the record exists.
	return nil, domain.ErrPatientNotFound
}
