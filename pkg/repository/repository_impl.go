package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/carebridge/pkg/db/option"
	"gorm.io/gorm"
)

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) WithTx(tx *gorm.DB) Repository[T] {
	return &store[T]{db: tx}
}

func (s *store[T]) Find(ctx context.Context, probe *T, opts ...option.QueryOption) ([]*T, error) {
	var rows []*T
	err := s.query(ctx, probe, opts).Find(&rows).Error
	return rows, err
}

func (s *store[T]) FindOne(ctx context.Context, probe *T, opts ...option.QueryOption) (*T, error) {
	var row T
	return orNil(&row, s.query(ctx, probe, opts).First(&row).Error)
}

func (s *store[T]) FindByID(ctx context.Context, id any) (*T, error) {
	var row T
	return orNil(&row, s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error)
}

func (s *store[T]) Count(ctx context.Context, probe *T) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(new(T)).Where(probe).Count(&n).Error
	return n, err
}

func (s *store[T]) Create(ctx context.Context, record *T) error {
	return s.db.WithContext(ctx).Create(record).Error
}

// Update applies fields by column name so zero values are written too. It
// reports how many rows matched.
func (s *store[T]) Update(ctx context.Context, id any, fields map[string]any) (int64, error) {
	res := s.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields)
	return res.RowsAffected, res.Error
}

func (s *store[T]) query(ctx context.Context, probe *T, opts []option.QueryOption) *gorm.DB {
	db := s.db.WithContext(ctx).Where(probe)
	for _, opt := range opts {
		db = opt.Apply(db)
	}
	return db
}

func orNil[T any](row *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}
