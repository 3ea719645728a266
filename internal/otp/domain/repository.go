package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, v *Verification) error
	Delete(ctx context.Context, id snowflake.ID) error
	// Current returns the newest unused, unverified code of userID.
	Current(ctx context.Context, userID snowflake.ID) (*Verification, error)
	// Invalidate marks every open code of userID used.
	Invalidate(ctx context.Context, userID snowflake.ID, at time.Time) error
	// IncrementAttempts bumps the counter of an open code and returns the new value.
	IncrementAttempts(ctx context.Context, id snowflake.ID, at time.Time) (int, error)
	MarkUsed(ctx context.Context, id snowflake.ID, at time.Time) error
	MarkVerified(ctx context.Context, id snowflake.ID, at time.Time) (bool, error)
	HasVerified(ctx context.Context, userID snowflake.ID) (bool, error)
	// RecentIssuances returns creation times of the newest limit codes.
	RecentIssuances(ctx context.Context, userID snowflake.ID, limit int) ([]time.Time, error)
}
