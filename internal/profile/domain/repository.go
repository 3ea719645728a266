package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrProfileNotFound = errors.New("profile_not_found")

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, profile *UserProfile) error
	FindByUserID(ctx context.Context, userID snowflake.ID) (*UserProfile, error)
	FindByEmail(ctx context.Context, email string) (*UserProfile, error)
	ListByOrganization(ctx context.Context, orgID snowflake.ID) ([]UserProfile, error)
	UpdateFields(ctx context.Context, userID snowflake.ID, fields map[string]any) error
}
