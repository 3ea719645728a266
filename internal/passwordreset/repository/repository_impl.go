package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/passwordreset/domain"
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

func (r *repository) Create(ctx context.Context, t *domain.ResetToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *repository) FindByToken(ctx context.Context, token string) (*domain.ResetToken, error) {
	var t domain.ResetToken
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repository) TokenExists(ctx context.Context, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.ResetToken{}).Where("token = ?", token).Count(&count).Error
	return count > 0, err
}

func (r *repository) Supersede(ctx context.Context, email string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.ResetToken{}).
		Where("email = ? AND is_used = ?", email, false).
		Updates(map[string]any{
			"is_used":    true,
			"superseded": true,
			"used_at":    at,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) Complete(ctx context.Context, id snowflake.ID, passwordHash string, usedAt, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.ResetToken{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_used":           true,
			"used_at":           usedAt,
			"new_password_hash": passwordHash,
			"updated_at":        at,
		}).Error
}
