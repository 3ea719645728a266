package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, t *ResetToken) error
	FindByToken(ctx context.Context, token string) (*ResetToken, error)
	TokenExists(ctx context.Context, token string) (bool, error)
	// Supersede marks every unused token of email used and superseded.
	Supersede(ctx context.Context, email string, at time.Time) (int64, error)
	Complete(ctx context.Context, id snowflake.ID, passwordHash string, usedAt, at time.Time) error
}
