package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/notification/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) WithTx(tx *gorm.DB) domain.Repository {
	return &repo{db: tx}
}

func (r *repo) Enqueue(ctx context.Context, job *domain.NotificationJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// ListDue returns pending jobs whose run_after has passed, plus processing
// jobs whose claim went stale before staleBefore.
func (r *repo) ListDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]domain.NotificationJob, error) {
	var jobs []domain.NotificationJob
	err := r.db.WithContext(ctx).
		Where("(status = ? AND run_after <= ?) OR (status = ? AND updated_at <= ?)",
			domain.StatusPending, now, domain.StatusProcessing, staleBefore).
		Order("run_after ASC, created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

func (r *repo) Claim(ctx context.Context, id snowflake.ID, now, staleBefore time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&domain.NotificationJob{}).
		Where("id = ? AND (status = ? OR (status = ? AND updated_at <= ?))",
			id, domain.StatusPending, domain.StatusProcessing, staleBefore).
		Updates(map[string]any{"status": domain.StatusProcessing, "updated_at": now})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (r *repo) MarkSent(ctx context.Context, id snowflake.ID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.NotificationJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.StatusSent,
			"sent_at":    now,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": nil,
			"updated_at": now,
		}).Error
}

func (r *repo) MarkRetry(ctx context.Context, id snowflake.ID, attempts int, lastErr string, runAfter time.Time, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.NotificationJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.StatusPending,
			"attempts":   attempts,
			"last_error": lastErr,
			"run_after":  runAfter,
			"updated_at": now,
		}).Error
}

func (r *repo) MarkFailed(ctx context.Context, id snowflake.ID, attempts int, lastErr string, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.NotificationJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.StatusFailed,
			"attempts":   attempts,
			"last_error": lastErr,
			"updated_at": now,
		}).Error
}

func (r *repo) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.NotificationJob{}).
		Where("status = ?", domain.StatusPending).
		Count(&count).Error
	return count, err
}
