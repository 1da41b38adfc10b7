package service

import (
	"time"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

// Week is a Monday-to-Saturday teaching week.
type Week struct {
	Monday time.Time
}

// WeekOf returns the week containing pivot. A Sunday pivot belongs to the
// week that started six days earlier.
func WeekOf(pivot time.Time) Week {
	date := models.CalendarDate(pivot)
	back := (int(date.Weekday()) + 6) % 7
	return Week{Monday: date.AddDate(0, 0, -back)}
}

// Date returns the calendar date of day within the week.
func (w Week) Date(day models.Day) time.Time {
	offset := day.Offset()
	if offset < 0 {
		return time.Time{}
	}
	return w.Monday.AddDate(0, 0, offset)
}

// Dates maps every working day to its ISO date.
func (w Week) Dates() map[models.Day]string {
	dates := make(map[models.Day]string, len(models.Days))
	for _, day := range models.Days {
		dates[day] = models.FormatDate(w.Date(day))
	}
	return dates
}

// AggregateWorkload counts classes per day, per period and overall for the
// given week. Days falling on a holiday count zero everywhere.
func AggregateWorkload(grid models.Grid, periods []models.Period, week Week, holidays models.HolidaySet) models.Workload {
	wl := models.Workload{
		Rows:    make(map[models.Day]int, len(models.Days)),
		Columns: make(map[int64]int, len(periods)),
	}
	for _, p := range periods {
		wl.Columns[p.ID] = 0
	}

	for _, day := range models.Days {
		wl.Rows[day] = 0
		if _, holiday := holidays.On(models.FormatDate(week.Date(day))); holiday {
			continue
		}
		for _, p := range periods {
			count := len(grid.Cell(day, p.ID))
			wl.Rows[day] += count
			wl.Columns[p.ID] += count
			wl.Overall += count
		}
	}
	return wl
}
