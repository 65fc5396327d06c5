// Package timeutil provides calendar-date utilities for learner progress.
// A calendar date is represented as a time.Time at 00:00 UTC of that day,
// so day arithmetic never crosses a DST boundary.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// Date layouts used across the service.
const (
	// DateLayout is the ISO calendar date used in storage and JSON.
	DateLayout = "2006-01-02"

	// LongDateLayout is the human-readable date printed on certificates.
	LongDateLayout = "January 02, 2006"
)

// Clock abstracts the current time so handlers can be tested with a fixed day.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return ClockFunc(time.Now)
}

// Calendar converts instants to calendar dates in a fixed location.
type Calendar struct {
	loc *time.Location
}

// NewCalendar creates a calendar for the given location. A nil location means UTC.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// LoadCalendar creates a calendar from an IANA timezone name.
func LoadCalendar(name string) (Calendar, error) {
	if name == "" {
		return NewCalendar(time.UTC), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return NewCalendar(loc), nil
}

// Location returns the calendar's location.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// DateOf returns the calendar date that t falls on in this calendar's location.
func (c Calendar) DateOf(t time.Time) time.Time {
	local := t.In(c.Location())
	return Date(local.Year(), local.Month(), local.Day())
}

// Today returns the current calendar date according to the clock.
func (c Calendar) Today(clock Clock) time.Time {
	return c.DateOf(clock.Now())
}

// Date builds a calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the time-of-day part of t, keeping its own year/month/day.
func Truncate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// DaysBetween returns the number of whole days from a to b.
// Negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(Truncate(b).Sub(Truncate(a)).Hours() / 24)
}

// AddDays shifts a calendar date by n days.
func AddDays(t time.Time, n int) time.Time {
	return Truncate(t).AddDate(0, 0, n)
}

// SameDay reports whether a and b are the same calendar date.
func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// ParseDate parses an ISO calendar date (2006-01-02).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate formats a date as ISO calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatLong formats a date for display, e.g. "March 05, 2025".
func FormatLong(t time.Time) string {
	return t.Format(LongDateLayout)
}
