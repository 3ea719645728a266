package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, p *Partnership) error
	FindByToken(ctx context.Context, token string) (*Partnership, error)
	TokenExists(ctx context.Context, token string) (bool, error)
	ListForOrganization(ctx context.Context, orgID snowflake.ID) ([]Partnership, error)
	// AcceptedBetween reports an accepted partnership in either direction.
	AcceptedBetween(ctx context.Context, a, b snowflake.ID) (bool, error)
	Respond(ctx context.Context, id snowflake.ID, status Status, partnerOrgID, respondedBy snowflake.ID, at time.Time) (bool, error)
}
