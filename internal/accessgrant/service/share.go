package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/accessgrant/domain"
	auditdomain "github.com/smallbiznis/carebridge/internal/audit/domain"
	"github.com/smallbiznis/carebridge/internal/authorization"
	"github.com/smallbiznis/carebridge/internal/errs"
	"github.com/smallbiznis/carebridge/internal/token"
	"github.com/smallbiznis/carebridge/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *service) CreateShare(ctx context.Context, patientID snowflake.ID, req domain.CreateShareRequest) (*domain.ShareResult, error) {
	patient, err := s.patient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	profile, err := s.owner(ctx, patient.OrganizationID, authorization.ObjectShare, authorization.ActionShareCreate, domain.ErrPatientNotFound)
	if err != nil {
		return nil, err
	}

	expiresAt, err := s.daysFromNow(req.ExpiresInDays)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if expiresAt == nil {
		expiresAt = s.policies.For(token.KindShare).ExpiresAt(now)
	}

	code, err := token.GenerateUnique(ctx, token.KindShare, s.repo.ShareTokenExists)
	if err != nil {
		return nil, fmt.Errorf("generate share token: %w", err)
	}

	share := &domain.PatientShare{
		ID:             s.genID.Generate(),
		PatientID:      patient.ID,
		OrganizationID: patient.OrganizationID,
		Token:          code,
		CreatedBy:      profile.UserID,
		ExpiresAt:      expiresAt,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateShare(ctx, share); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return errs.New(errs.KindAlreadyExists, "share code collision, please retry")
			}
			return err
		}
		return s.audit(ctx, tx, patient.OrganizationID, auditdomain.ActionShareCreated, "patient_share", share.ID, map[string]any{
			"patient_id":  patient.ID.String(),
			"share_token": code,
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIssued(ctx, string(token.KindShare))

	s.log.Info("patient share created",
		zap.String("share_id", share.ID.String()),
		zap.String("patient_id", patient.ID.String()),
	)
	return &domain.ShareResult{Share: share, Token: code}, nil
}

func (s *service) RevokeShare(ctx context.Context, shareID snowflake.ID) error {
	share, err := s.repo.FindShareByID(ctx, shareID)
	if err != nil {
		return err
	}
	if _, err := s.owner(ctx, share.OrganizationID, authorization.ObjectShare, authorization.ActionShareRevoke, domain.ErrShareNotFound); err != nil {
		return err
	}
	if !share.IsActive {
		return nil
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).DeactivateShare(ctx, share.ID, map[string]any{
			"is_active":  false,
			"updated_at": now,
		}); err != nil {
			return err
		}
		return s.audit(ctx, tx, share.OrganizationID, auditdomain.ActionShareRevoked, "patient_share", share.ID, map[string]any{
			"patient_id": share.PatientID.String(),
		})
	})
}
