package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTripKeepsTieBreak(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 123456789, time.UTC)
	token, err := EncodeCursor(NewCursor(42, &ts))
	require.NoError(t, err)

	boundary, err := ParseBoundary(token)
	require.NoError(t, err)
	require.NotNil(t, boundary)
	assert.Equal(t, int64(42), boundary.ID)
	require.NotNil(t, boundary.Timestamp)
	assert.True(t, ts.Equal(*boundary.Timestamp))
}

func TestCursorNullTimestamp(t *testing.T) {
	token, err := EncodeCursor(NewCursor(7, nil))
	require.NoError(t, err)

	boundary, err := ParseBoundary(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), boundary.ID)
	assert.Nil(t, boundary.Timestamp)
}

func TestParseBoundaryRejectsGarbage(t *testing.T) {
	_, err := ParseBoundary("%%%not-base64")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	empty, err := ParseBoundary("  ")
	assert.NoError(t, err)
	assert.Nil(t, empty)
}

func TestBuildCursorPageInfoOnlyEmitsTokenWhenMore(t *testing.T) {
	a, b, c := 1, 2, 3
	info := BuildCursorPageInfo([]*int{&a, &b, &c}, 2, func(v *int) string {
		return string(rune('0' + *v))
	})
	assert.True(t, info.HasMore)
	assert.Equal(t, "2", info.NextPageToken)

	info = BuildCursorPageInfo([]*int{&a}, 2, func(v *int) string { return "x" })
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50!% off!_now`, EscapeLike("50% off_now"))
	assert.Equal(t, `wow!!`, EscapeLike("wow!"))
	assert.Equal(t, `%hello!_world%`, ContainsPattern("postgres", "Hello_World"))
}

func TestFoldCaseMatchesDialectLower(t *testing.T) {
	assert.Equal(t, "école", FoldCase("postgres", "École"))
	assert.Equal(t, "École", FoldCase("sqlite", "École"))
	assert.Equal(t, "%Éclair!%%", ContainsPattern("sqlite", "ÉCLAIR%"))
}
