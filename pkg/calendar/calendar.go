// Package calendar works with app-local calendar days stored as YYYY-MM-DD strings.
package calendar

import (
	"fmt"
	"time"
)

const Layout = "2006-01-02"

// Day returns the calendar day of t in loc.
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(Layout)
}

// Parse reads a YYYY-MM-DD day as midnight UTC so that day arithmetic ignores DST.
func Parse(day string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, day, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid calendar day %q: %w", day, err)
	}
	return t, nil
}

// DaysBetween counts calendar days from -> to. Negative when to is before from.
func DaysBetween(from, to string) (int, error) {
	a, err := Parse(from)
	if err != nil {
		return 0, err
	}
	b, err := Parse(to)
	if err != nil {
		return 0, err
	}
	return int(b.Sub(a).Hours() / 24), nil
}

// AddDays shifts a day by n calendar days.
func AddDays(day string, n int) (string, error) {
	t, err := Parse(day)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(Layout), nil
}

// WeekStart returns the Sunday that opens the Sunday-Saturday week containing t in loc.
func WeekStart(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	sunday := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -int(local.Weekday()))
	return sunday.Format(Layout)
}

// WindowStart returns the first day of an inclusive window of size days ending on today.
func WindowStart(today string, size int) (string, error) {
	return AddDays(today, -(size - 1))
}
