package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/errs"
)

type Service interface {
	// Authorize checks actor ("user:<id>" or "system") against the role
	// policies of orgID.
	Authorize(ctx context.Context, actor string, orgID string, object string, action string) error
	AuthorizeUser(ctx context.Context, userID snowflake.ID, orgID snowflake.ID, object string, action string) error
}

var (
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrForbidden           = errs.New(errs.KindInsufficientPermissions, "insufficient permissions for this action")
)
