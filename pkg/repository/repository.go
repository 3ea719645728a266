package repository

import (
	"context"

	"github.com/smallbiznis/carebridge/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm store for records that need no bespoke
// queries. Lookups filter by the non-zero fields of the probe; FindOne and
// FindByID return nil, nil when no row matches.
type Repository[T any] interface {
	WithTx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, probe *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, probe *T, opts ...option.QueryOption) (*T, error)
	FindByID(ctx context.Context, id any) (*T, error)
	Count(ctx context.Context, probe *T) (int64, error)
	Create(ctx context.Context, record *T) error
	Update(ctx context.Context, id any, fields map[string]any) (int64, error)
}
