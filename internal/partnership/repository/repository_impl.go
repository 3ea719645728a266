package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/partnership/domain"
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

func (r *repository) Create(ctx context.Context, p *domain.Partnership) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *repository) FindByToken(ctx context.Context, token string) (*domain.Partnership, error) {
	var p domain.Partnership
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrPartnershipNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) TokenExists(ctx context.Context, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Partnership{}).Where("token = ?", token).Count(&count).Error
	return count > 0, err
}

func (r *repository) ListForOrganization(ctx context.Context, orgID snowflake.ID) ([]domain.Partnership, error) {
	var items []domain.Partnership
	err := r.db.WithContext(ctx).
		Where("requesting_org_id = ? OR partner_org_id = ?", orgID, orgID).
		Order("created_at DESC, id DESC").
		Find(&items).Error
	return items, err
}

func (r *repository) AcceptedBetween(ctx context.Context, a, b snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Partnership{}).
		Where("status = ?", domain.StatusAccepted).
		Where("(requesting_org_id = ? AND partner_org_id = ?) OR (requesting_org_id = ? AND partner_org_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}

// Respond moves a pending partnership to status. It reports false when the
// row was no longer pending.
func (r *repository) Respond(ctx context.Context, id snowflake.ID, status domain.Status, partnerOrgID, respondedBy snowflake.ID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Partnership{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"status":         status,
			"partner_org_id": partnerOrgID,
			"responded_by":   respondedBy,
			"responded_at":   at,
			"updated_at":     at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
