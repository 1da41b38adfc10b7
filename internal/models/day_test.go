package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDay(t *testing.T) {
	cases := map[string]Day{
		"Monday":    Monday,
		"mon":       Monday,
		"MON":       Monday,
		" tuesday ": Tuesday,
		"Wed":       Wednesday,
		"THURSDAY":  Thursday,
		"fri":       Friday,
		"Saturday":  Saturday,
		"sat":       Saturday,
	}
	for raw, want := range cases {
		got, ok := ParseDay(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"sunday", "Sun", "", "mo", "funday"} {
		_, ok := ParseDay(raw)
		assert.False(t, ok, raw)
	}
}

func TestParseDayIsIdempotent(t *testing.T) {
	require.Len(t, Days, 6)
	for _, day := range Days {
		got, ok := ParseDay(string(day))
		require.True(t, ok, day)
		assert.Equal(t, day, got)

		again, ok := ParseDay(string(got))
		require.True(t, ok, day)
		assert.Equal(t, got, again)

		fromTitle, ok := ParseDay(day.Title())
		require.True(t, ok, day)
		assert.Equal(t, day, fromTitle)
	}
}

func TestDayTitleAndOffset(t *testing.T) {
	assert.Equal(t, "Monday", Monday.Title())
	assert.Equal(t, "", Day("").Title())
	assert.Equal(t, 0, Monday.Offset())
	assert.Equal(t, 5, Saturday.Offset())
	assert.Equal(t, -1, Day("sunday").Offset())
	assert.False(t, Day("sunday").Valid())
}

func TestDayOf(t *testing.T) {
	day, ok := DayOf(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, Monday, day)

	_, ok = DayOf(time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestParseCellKey(t *testing.T) {
	key, err := ParseCellKey("Mon_3")
	require.NoError(t, err)
	assert.Equal(t, CellKey{Day: Monday, PeriodID: 3}, key)
	assert.Equal(t, "monday_3", key.String())

	for _, raw := range []string{"monday", "monday_", "_3", "sunday_1", "monday_x", "monday_0"} {
		_, err := ParseCellKey(raw)
		assert.Error(t, err, raw)
	}
}

func TestCellKeyLess(t *testing.T) {
	assert.True(t, CellKey{Day: Monday, PeriodID: 9}.Less(CellKey{Day: Tuesday, PeriodID: 1}))
	assert.True(t, CellKey{Day: Friday, PeriodID: 1}.Less(CellKey{Day: Friday, PeriodID: 2}))
	assert.False(t, CellKey{Day: Saturday, PeriodID: 1}.Less(CellKey{Day: Monday, PeriodID: 1}))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-03T00:00:00.000Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-03", FormatDate(d))

	_, err = ParseDate("03/06/2024")
	assert.Error(t, err)
}

func TestHolidaySet(t *testing.T) {
	set := NewHolidaySet([]Holiday{{Date: "2024-06-05", Description: "Founders"}, {Description: "undated"}})
	h, ok := set.On("2024-06-05")
	require.True(t, ok)
	assert.Equal(t, "Founders", h.Description)
	assert.Len(t, set, 1)
}

func TestTokenClaimsOwner(t *testing.T) {
	var nilClaims *TokenClaims
	assert.Equal(t, "", nilClaims.Owner())

	claims := &TokenClaims{ID: "42"}
	claims.Subject = "sub"
	assert.Equal(t, "42", claims.Owner())
	claims.UserID = "7"
	assert.Equal(t, "7", claims.Owner())
}
