package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/otp/domain"
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

func (r *repository) Create(ctx context.Context, v *domain.Verification) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *repository) Delete(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Delete(&domain.Verification{}, "id = ?", id).Error
}

func (r *repository) open(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.Verification{}).
		Where("is_used = ? AND is_verified = ?", false, false)
}

func (r *repository) Current(ctx context.Context, userID snowflake.ID) (*domain.Verification, error) {
	var v domain.Verification
	err := r.open(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNoActiveCode
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repository) Invalidate(ctx context.Context, userID snowflake.ID, at time.Time) error {
	return r.open(ctx).
		Where("user_id = ?", userID).
		Updates(map[string]any{"is_used": true, "updated_at": at}).Error
}

func (r *repository) IncrementAttempts(ctx context.Context, id snowflake.ID, at time.Time) (int, error) {
	var attempts int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Verification{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"attempts":   gorm.Expr("attempts + 1"),
				"updated_at": at,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Verification{}).
			Where("id = ?", id).
			Select("attempts").
			Scan(&attempts).Error
	})
	return attempts, err
}

func (r *repository) MarkUsed(ctx context.Context, id snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Verification{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_used": true, "updated_at": at}).Error
}

func (r *repository) MarkVerified(ctx context.Context, id snowflake.ID, at time.Time) (bool, error) {
	res := r.open(ctx).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_used":     true,
			"is_verified": true,
			"verified_at": at,
			"updated_at":  at,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) HasVerified(ctx context.Context, userID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Verification{}).
		Where("user_id = ? AND is_verified = ?", userID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) RecentIssuances(ctx context.Context, userID snowflake.ID, limit int) ([]time.Time, error) {
	var rows []domain.Verification
	err := r.db.WithContext(ctx).
		Select("created_at").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.CreatedAt)
	}
	return out, nil
}
