package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/errs"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"gorm.io/gorm"
)

type Service interface {
	WithTx(tx *gorm.DB) Service
	// Create founds an organization owned by the caller. A caller who
	// already belongs to an organization fails with InvariantViolation.
	Create(ctx context.Context, req CreateOrganizationRequest) (*Organization, error)
	GetCurrent(ctx context.Context) (*Organization, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	ListMembers(ctx context.Context) ([]profiledomain.UserProfile, error)
	RemoveMember(ctx context.Context, userID snowflake.ID) error
}

type CreateOrganizationRequest struct {
	Name  string
	Email string
	Phone string
}

var (
	ErrOrganizationNotFound = errors.New("organization_not_found")

	ErrInvalidName       = errs.New(errs.KindInvalidArgument, "organization name is required")
	ErrAlreadyMember     = errs.New(errs.KindInvariantViolation, "you already belong to an organization")
	ErrNoOrganization    = errs.New(errs.KindNotFound, "organization not found")
	ErrMemberNotFound    = errs.New(errs.KindNotFound, "member not found")
	ErrCannotRemoveSelf  = errs.New(errs.KindInvalidArgument, "you cannot remove yourself")
	ErrCannotRemoveOwner = errs.New(errs.KindInvariantViolation, "the organization owner cannot be removed")
)
