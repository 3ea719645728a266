package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	WithTx(tx *gorm.DB) Service
	// Current resolves the authenticated caller's profile.
	Current(ctx context.Context) (*UserProfile, error)
	GetByUserID(ctx context.Context, userID snowflake.ID) (*UserProfile, error)
	// FindByEmail returns nil, nil when no profile matches.
	FindByEmail(ctx context.Context, email string) (*UserProfile, error)
	Create(ctx context.Context, req CreateRequest) (*UserProfile, error)
	Update(ctx context.Context, req UpdateRequest) (*UserProfile, error)
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]UserProfile, error)
	JoinOrganization(ctx context.Context, userID, orgID snowflake.ID, role Role) error
	LeaveOrganization(ctx context.Context, userID snowflake.ID) error
	SetOTPRequirement(ctx context.Context, userID snowflake.ID, requirement OTPRequirement) error
}

type CreateRequest struct {
	UserID         snowflake.ID
	Email          string
	FirstName      string
	LastName       string
	OTPRequirement OTPRequirement
}

type UpdateRequest struct {
	FirstName *string
	LastName  *string
}
