package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/accessgrant/domain"
	"github.com/smallbiznis/carebridge/internal/authorization"
)

func (s *service) ListForPatient(ctx context.Context, patientID snowflake.ID) ([]domain.GrantView, error) {
	patient, err := s.patient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if _, err := s.owner(ctx, patient.OrganizationID, authorization.ObjectAccessGrant, authorization.ActionAccessGrantView, domain.ErrPatientNotFound); err != nil {
		return nil, err
	}
	grants, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.views(grants), nil
}

func (s *service) ListMine(ctx context.Context) ([]domain.GrantView, error) {
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return nil, err
	}
	grants, err := s.repo.ListByRequester(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}
	return s.views(grants), nil
}

func (s *service) ListPending(ctx context.Context) ([]domain.GrantView, error) {
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !profile.HasOrganization() {
		return nil, domain.ErrNoOrganization
	}
	orgID := *profile.OrganizationID
	if err := s.authz.AuthorizeUser(ctx, profile.UserID, orgID, authorization.ObjectAccessGrant, authorization.ActionAccessGrantView); err != nil {
		return nil, err
	}
	grants, err := s.repo.ListPendingForGrantor(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return s.views(grants), nil
}

func (s *service) CheckAccess(ctx context.Context, patientID snowflake.ID, permission string) (bool, error) {
	perm := domain.Permission(permission)
	if !perm.Valid() {
		return false, domain.ErrInvalidPermission
	}
	profile, err := s.profileSvc.Current(ctx)
	if err != nil {
		return false, err
	}
	patient, err := s.patient(ctx, patientID)
	if errors.Is(err, domain.ErrPatientNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if profile.InOrganization(patient.OrganizationID) {
		return true, nil
	}

	grants, err := s.repo.ListActiveForRequester(ctx, patientID, profile.UserID)
	if err != nil {
		return false, err
	}
	now := s.clock.Now()
	for i := range grants {
		if grants[i].Live(now) && grants[i].Allows(perm) {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) views(grants []domain.TokenAccessGrant) []domain.GrantView {
	now := s.clock.Now()
	out := make([]domain.GrantView, 0, len(grants))
	for _, g := range grants {
		out = append(out, domain.NewGrantView(g, now))
	}
	return out
}
