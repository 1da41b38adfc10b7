package models

import (
	"strings"
	"time"
)

// Day is a canonical working day. Sunday is not part of the teaching week.
type Day string

const (
	Monday    Day = "monday"
	Tuesday   Day = "tuesday"
	Wednesday Day = "wednesday"
	Thursday  Day = "thursday"
	Friday    Day = "friday"
	Saturday  Day = "saturday"
)

// Days lists the working week in display order.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

var dayLookup = map[string]Day{
	"monday":    Monday,
	"mon":       Monday,
	"tuesday":   Tuesday,
	"tue":       Tuesday,
	"wednesday": Wednesday,
	"wed":       Wednesday,
	"thursday":  Thursday,
	"thu":       Thursday,
	"friday":    Friday,
	"fri":       Friday,
	"saturday":  Saturday,
	"sat":       Saturday,
}

// ParseDay maps full names and three-letter abbreviations, in any case, to a
// canonical day. Anything else, Sunday included, is not recognised.
func ParseDay(raw string) (Day, bool) {
	d, ok := dayLookup[strings.ToLower(strings.TrimSpace(raw))]
	return d, ok
}

// Valid reports whether d is one of the canonical days.
func (d Day) Valid() bool {
	return d.Offset() >= 0
}

// Offset is the number of days between Monday and d.
func (d Day) Offset() int {
	for i, day := range Days {
		if day == d {
			return i
		}
	}
	return -1
}

// Title renders the capitalised form used on the wire, e.g. "Monday".
func (d Day) Title() string {
	if d == "" {
		return ""
	}
	return strings.ToUpper(string(d[:1])) + string(d[1:])
}

// DayOf returns the canonical day of a calendar date.
func DayOf(t time.Time) (Day, bool) {
	switch t.Weekday() {
	case time.Monday:
		return Monday, true
	case time.Tuesday:
		return Tuesday, true
	case time.Wednesday:
		return Wednesday, true
	case time.Thursday:
		return Thursday, true
	case time.Friday:
		return Friday, true
	case time.Saturday:
		return Saturday, true
	default:
		return "", false
	}
}
