package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/invitation/domain"
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

func (r *repository) Create(ctx context.Context, inv *domain.MemberInvitation) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.MemberInvitation, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByToken(ctx context.Context, token string) (*domain.MemberInvitation, error) {
	return r.first(ctx, "token = ?", token)
}

func (r *repository) TokenExists(ctx context.Context, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.MemberInvitation{}).Where("token = ?", token).Count(&count).Error
	return count > 0, err
}

func (r *repository) ListOpen(ctx context.Context, orgID snowflake.ID, email string) ([]domain.MemberInvitation, error) {
	var items []domain.MemberInvitation
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND email = ? AND is_active = ? AND is_used = ?", orgID, email, true, false).
		Find(&items).Error
	return items, err
}

func (r *repository) ListByOrganization(ctx context.Context, orgID snowflake.ID) ([]domain.MemberInvitation, error) {
	var items []domain.MemberInvitation
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC, id DESC").
		Find(&items).Error
	return items, err
}

func (r *repository) MarkUsed(ctx context.Context, id, userID snowflake.ID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.MemberInvitation{}).
		Where("id = ? AND is_used = ?", id, false).
		Updates(map[string]any{
			"is_used":    true,
			"used_by":    userID,
			"used_at":    at,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Deactivate(ctx context.Context, id snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.MemberInvitation{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "updated_at": at}).Error
}

func (r *repository) first(ctx context.Context, query string, args ...any) (*domain.MemberInvitation, error) {
	var inv domain.MemberInvitation
	err := r.db.WithContext(ctx).Where(query, args...).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
