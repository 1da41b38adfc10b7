package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used for substitutions and holidays.
const DateLayout = "2006-01-02"

// ParseDate reads an ISO date, tolerating a trailing time component such as
// "2024-06-03T00:00:00.000Z". The result is midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > len(DateLayout) && raw[len(DateLayout)] == 'T' {
		raw = raw[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t, nil
}

// FormatDate renders t as an ISO date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// CalendarDate drops the clock component of t, keeping its local calendar day.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
