package utils

import (
	"time"
)

// DateOnly truncates a timestamp to midnight UTC of the same calendar day
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from start to end (negative if end is earlier)
func DaysBetween(start, end time.Time) int {
	return int(DateOnly(end).Sub(DateOnly(start)).Hours() / 24)
}

// SameDay reports whether both timestamps fall on the same calendar day
func SameDay(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}

// BeforeDay reports whether a falls on a calendar day strictly before b
func BeforeDay(a, b time.Time) bool {
	return DateOnly(a).Before(DateOnly(b))
}

// AfterDay reports whether a falls on a calendar day strictly after b
func AfterDay(a, b time.Time) bool {
	return DateOnly(a).After(DateOnly(b))
}

// CalculateDueDate calculates the due date of the n-th period after start.
// Weekly periods are 7 days; anything else is treated as monthly.
func CalculateDueDate(start time.Time, frequency string, n int) time.Time {
	if frequency == "weekly" {
		return DateOnly(start).AddDate(0, 0, 7*n)
	}
	return DateOnly(start).AddDate(0, n, 0)
}

// IsDateOverdue checks if a due date is strictly before asOf
func IsDateOverdue(dueDate, asOf time.Time) bool {
	return BeforeDay(dueDate, asOf)
}

// InWindow reports whether date falls in (from, to], or [from, to] when fromInclusive is set
func InWindow(date, from, to time.Time, fromInclusive bool) bool {
	if AfterDay(date, to) {
		return false
	}
	if fromInclusive {
		return !BeforeDay(date, from)
	}
	return AfterDay(date, from)
}
