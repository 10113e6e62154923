// Package calendar treats time.Time values as civil dates: UTC midnight of the
// year, month and day they carry.
package calendar

import (
	"fmt"
	"time"
)

// Layout is the ISO-8601 date format used on the wire.
const Layout = "2006-01-02"

// Date returns midnight UTC of the calendar day t falls on in its own location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date according to now.
func Today(now func() time.Time) time.Time {
	return Date(now())
}

// DaysBetween returns the signed number of calendar days from 'from' to 'to'.
func DaysBetween(from, to time.Time) int {
	return int(Date(to).Sub(Date(from)) / (24 * time.Hour))
}

// AddDays shifts a calendar date by n days.
func AddDays(t time.Time, n int) time.Time {
	return Date(t).AddDate(0, 0, n)
}

// Parse reads an ISO date.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
