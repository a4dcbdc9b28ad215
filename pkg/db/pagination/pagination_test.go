package pagination

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysetTokenRoundTrip(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)
	token := Keyset{CreatedAt: at, ID: 42}.Token()

	parsed, err := ParseToken(token)
	require.NoError(t, err)
	assert.True(t, at.Equal(parsed.CreatedAt))
	assert.Equal(t, snowflake.ID(42), parsed.ID)

	for _, bad := range []string{"%%%", "bm90LWpzb24", "eyJ0IjoxLCJpZCI6IngifQ", "eyJpZCI6IjQyIn0"} {
		_, err := ParseToken(bad)
		assert.ErrorIs(t, err, ErrInvalidPageToken, bad)
	}
}

func TestPageLimitAndKeyset(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Page{}.Limit())
	assert.Equal(t, MaxPageSize, Page{PageSize: 10000}.Limit())
	assert.Equal(t, 7, Page{PageSize: 7}.Limit())

	k, err := Page{PageToken: "  "}.Keyset()
	require.NoError(t, err)
	assert.Nil(t, k)

	_, err = Page{PageToken: "not-a-token"}.Keyset()
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestCut(t *testing.T) {
	at := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	keyOf := func(id int64) Keyset { return Keyset{CreatedAt: at, ID: snowflake.ID(id)} }

	rows, info := Cut([]int64{3, 2, 1}, 2, keyOf)
	assert.Equal(t, []int64{3, 2}, rows)
	assert.True(t, info.HasMore)
	next, err := ParseToken(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(2), next.ID)

	rows, info = Cut([]int64{1}, 2, keyOf)
	assert.Equal(t, []int64{1}, rows)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestKeysetAfter(t *testing.T) {
	at := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	clause, args := Keyset{CreatedAt: at, ID: 9}.After()
	assert.Equal(t, "((created_at < ?) OR (created_at = ? AND id < ?))", clause)
	assert.Equal(t, []any{at, at, snowflake.ID(9)}, args)
}
