package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, inv *MemberInvitation) error
	FindByID(ctx context.Context, id snowflake.ID) (*MemberInvitation, error)
	FindByToken(ctx context.Context, token string) (*MemberInvitation, error)
	TokenExists(ctx context.Context, token string) (bool, error)
	// ListOpen returns active unused invitations for email in orgID,
	// including expired ones.
	ListOpen(ctx context.Context, orgID snowflake.ID, email string) ([]MemberInvitation, error)
	ListByOrganization(ctx context.Context, orgID snowflake.ID) ([]MemberInvitation, error)
	// MarkUsed reports false when the invitation was already used.
	MarkUsed(ctx context.Context, id, userID snowflake.ID, at time.Time) (bool, error)
	Deactivate(ctx context.Context, id snowflake.ID, at time.Time) error
}
