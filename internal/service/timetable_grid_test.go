package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

var testPeriods = []models.Period{{ID: 1, Name: "P1"}, {ID: 2, Name: "P2"}, {ID: 3, Name: "P3"}}

func TestBuildGridPlacesRecords(t *testing.T) {
	records := []models.TimetableRecord{
		{Day: "Mon", PeriodID: 1, ClassID: 5, SubjectID: 2, TeacherID: 9},
		{Day: "monday", PeriodID: 1, ClassID: 6, SubjectID: 2, TeacherID: 9},
		{Day: "FRIDAY", PeriodID: 3, ClassID: 7, SubjectID: 4, TeacherID: 9},
	}

	build := BuildGrid(records, testPeriods)

	require.Len(t, build.Grid, len(models.Days))
	for _, day := range models.Days {
		for _, p := range testPeriods {
			assert.True(t, build.Grid.Has(day, p.ID), "%s/%d", day, p.ID)
		}
	}
	assert.Len(t, build.Grid.Cell(models.Monday, 1), 2)
	assert.Len(t, build.Grid.Cell(models.Friday, 3), 1)
	assert.Empty(t, build.Grid.Cell(models.Tuesday, 2))
	assert.NotNil(t, build.Grid.Cell(models.Tuesday, 2))
	assert.Empty(t, build.Dropped)
}

func TestBuildGridDropsUnknownDayAndPeriod(t *testing.T) {
	records := []models.TimetableRecord{
		{Day: "Sunday", PeriodID: 1, ClassID: 5},
		{Day: "Monday", PeriodID: 99, ClassID: 5},
		{Day: "Tuesday", PeriodID: 2, ClassID: 5},
	}

	build := BuildGrid(records, testPeriods)

	require.Len(t, build.Dropped, 2)
	assert.Equal(t, models.DropUnknownDay, build.Dropped[0].Reason)
	assert.Equal(t, models.DropUnknownPeriod, build.Dropped[1].Reason)
	assert.Equal(t, int64(99), build.Dropped[1].Record.PeriodID)

	total := 0
	for _, day := range models.Days {
		for _, p := range testPeriods {
			total += len(build.Grid.Cell(day, p.ID))
		}
	}
	assert.Equal(t, 1, total)
}

func TestBuildGridWithoutPeriods(t *testing.T) {
	build := BuildGrid([]models.TimetableRecord{{Day: "Monday", PeriodID: 1}}, nil)
	assert.False(t, build.Grid.Has(models.Monday, 1))
	require.Len(t, build.Dropped, 1)
}

func TestDeriveClassSubjectAcrossEntries(t *testing.T) {
	classID, subjectID, ok := deriveClassSubject([]models.TimetableEntry{
		{ClassID: 5},
		{SubjectID: 2},
	})
	assert.True(t, ok)
	assert.Equal(t, int64(5), classID)
	assert.Equal(t, int64(2), subjectID)

	_, _, ok = deriveClassSubject([]models.TimetableEntry{{ClassID: 5}})
	assert.False(t, ok)
}

func TestWeekOf(t *testing.T) {
	monday := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	for offset := 0; offset < 7; offset++ {
		pivot := monday.AddDate(0, 0, offset)
		assert.Equal(t, "2024-06-03", models.FormatDate(WeekOf(pivot).Monday), pivot.Weekday().String())
	}

	dates := WeekOf(monday).Dates()
	assert.Equal(t, "2024-06-03", dates[models.Monday])
	assert.Equal(t, "2024-06-08", dates[models.Saturday])
	assert.Len(t, dates, 6)
}

func TestAggregateWorkload(t *testing.T) {
	build := BuildGrid([]models.TimetableRecord{
		{Day: "Monday", PeriodID: 1, ClassID: 5},
		{Day: "Monday", PeriodID: 1, ClassID: 6},
		{Day: "Monday", PeriodID: 2, ClassID: 5},
		{Day: "Wednesday", PeriodID: 2, ClassID: 5},
		{Day: "Friday", PeriodID: 3, ClassID: 5},
	}, testPeriods)
	week := WeekOf(time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC))

	wl := AggregateWorkload(build.Grid, testPeriods, week, models.HolidaySet{})

	assert.Equal(t, 3, wl.Rows[models.Monday])
	assert.Equal(t, 1, wl.Rows[models.Wednesday])
	assert.Equal(t, 0, wl.Rows[models.Saturday])
	assert.Equal(t, 2, wl.Columns[1])
	assert.Equal(t, 2, wl.Columns[2])
	assert.Equal(t, 1, wl.Columns[3])
	assert.Equal(t, 5, wl.Overall)

	rows, cols := 0, 0
	for _, n := range wl.Rows {
		rows += n
	}
	for _, n := range wl.Columns {
		cols += n
	}
	assert.Equal(t, wl.Overall, rows)
	assert.Equal(t, wl.Overall, cols)
}

func TestAggregateWorkloadSkipsHolidays(t *testing.T) {
	build := BuildGrid([]models.TimetableRecord{
		{Day: "Monday", PeriodID: 1, ClassID: 5},
		{Day: "Wednesday", PeriodID: 2, ClassID: 5},
		{Day: "Wednesday", PeriodID: 3, ClassID: 5},
	}, testPeriods)
	holidays := models.NewHolidaySet([]models.Holiday{{Date: "2024-06-05"}})
	// Sunday pivot: the week starting 2024-06-03.
	week := WeekOf(time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC))

	wl := AggregateWorkload(build.Grid, testPeriods, week, holidays)

	assert.Equal(t, 0, wl.Rows[models.Wednesday])
	assert.Equal(t, 0, wl.Columns[2])
	assert.Equal(t, 0, wl.Columns[3])
	assert.Equal(t, 1, wl.Overall)
}
