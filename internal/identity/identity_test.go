package identity

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentWithoutUserIsUnauthenticated(t *testing.T) {
	_, err := Current(context.Background())
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)
}

func TestCurrentReturnsUser(t *testing.T) {
	ctx := WithUser(context.Background(), snowflake.ID(42))
	id, err := Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(42), id)
}
