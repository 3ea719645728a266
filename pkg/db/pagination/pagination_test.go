package pagination

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitClamps(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 10_000}.Limit())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Limit())
}

func TestCursorTokenRoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 30, 0, 123, time.UTC)
	token := EncodeCursor(Cursor{ID: snowflake.ID(99), CreatedAt: at})

	got, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(99), got.ID)
	assert.True(t, at.Equal(got.CreatedAt))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"%%%", "bm90LWpzb24", "e30"} {
		_, err := DecodeCursor(token)
		assert.ErrorIs(t, err, ErrMalformedToken, token)
	}

	got, err := DecodeCursor("  ")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestTrim(t *testing.T) {
	position := func(n int) Cursor { return Cursor{ID: snowflake.ID(n)} }

	items, info := Trim([]int{5, 4, 3}, 2, position)
	assert.Equal(t, []int{5, 4}, items)
	assert.True(t, info.HasMore)
	next, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(4), next.ID)

	items, info = Trim([]int{1}, 2, position)
	assert.Equal(t, []int{1}, items)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}
