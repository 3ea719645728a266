package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/accessgrant/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateShare(ctx context.Context, share *domain.PatientShare) error {
	return r.db.WithContext(ctx).Create(share).Error
}

func (r *repository) FindShareByID(ctx context.Context, id snowflake.ID) (*domain.PatientShare, error) {
	var share domain.PatientShare
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&share).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrShareNotFound
	}
	if err != nil {
		return nil, err
	}
	return &share, nil
}

func (r *repository) FindShareByToken(ctx context.Context, token string) (*domain.PatientShare, error) {
	var share domain.PatientShare
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&share).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrShareNotFound
	}
	if err != nil {
		return nil, err
	}
	return &share, nil
}

func (r *repository) ShareTokenExists(ctx context.Context, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.PatientShare{}).Where("token = ?", token).Count(&count).Error
	return count > 0, err
}

func (r *repository) DeactivateShare(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&domain.PatientShare{}).Where("id = ?", id).Updates(fields).Error
}

func (r *repository) CreateGrant(ctx context.Context, grant *domain.TokenAccessGrant) error {
	return r.db.WithContext(ctx).Create(grant).Error
}

func (r *repository) FindGrantByID(ctx context.Context, id snowflake.ID) (*domain.TokenAccessGrant, error) {
	var grant domain.TokenAccessGrant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&grant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrGrantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

func (r *repository) ListActiveForRequester(ctx context.Context, patientID, userID snowflake.ID) ([]domain.TokenAccessGrant, error) {
	var grants []domain.TokenAccessGrant
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND requested_by_user_id = ?", patientID, userID).
		Where("is_active = ? AND status IN ?", true, []domain.Status{domain.StatusPending, domain.StatusApproved}).
		Order("requested_at DESC, id DESC").
		Find(&grants).Error
	return grants, err
}

func (r *repository) Transition(ctx context.Context, id snowflake.ID, from domain.Status, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.TokenAccessGrant{}).
		Where("id = ? AND status = ? AND is_active = ?", id, from, true).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByPatient(ctx context.Context, patientID snowflake.ID) ([]domain.TokenAccessGrant, error) {
	return r.list(ctx, "patient_id = ?", patientID)
}

func (r *repository) ListByRequester(ctx context.Context, userID snowflake.ID) ([]domain.TokenAccessGrant, error) {
	return r.list(ctx, "requested_by_user_id = ?", userID)
}

func (r *repository) ListPendingForGrantor(ctx context.Context, orgID snowflake.ID) ([]domain.TokenAccessGrant, error) {
	return r.list(ctx, "grantor_org_id = ? AND status = ? AND is_active = ?", orgID, domain.StatusPending, true)
}

func (r *repository) list(ctx context.Context, query string, args ...any) ([]domain.TokenAccessGrant, error) {
	var grants []domain.TokenAccessGrant
	err := r.db.WithContext(ctx).Where(query, args...).Order("requested_at DESC, id DESC").Find(&grants).Error
	return grants, err
}
