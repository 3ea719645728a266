// Package identity resolves the authenticated caller of a request.
package identity

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/errs"
)

type userKey struct{}

// WithUser returns a context carrying the authenticated user id.
func WithUser(ctx context.Context, userID snowflake.ID) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the authenticated user id, if any.
func UserFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(userKey{}).(snowflake.ID)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}

// Current resolves the caller or fails with ErrUnauthenticated.
func Current(ctx context.Context) (snowflake.ID, error) {
	id, ok := UserFromContext(ctx)
	if !ok {
		return 0, errs.ErrUnauthenticated
	}
	return id, nil
}
