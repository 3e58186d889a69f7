package schedlib

import (
	"fmt"
	"math"
	"time"
)

// Academic calendar arithmetic. All functions are pure and
// deterministic given a reference time; no I/O.
//
// Week numbering is anchored to the institution's academic year: week 1
// begins on the first Monday on or after September 1. The numbers must
// match the origin server's own week indexing so week-indexed schedule
// queries align — this is a compatibility requirement, not a stylistic
// choice.

// NormalizeWeekday maps Go's Sunday-first time.Weekday (0..6) onto the
// 1-indexed Monday..Sunday convention used by the origin (Sunday → 7).
func NormalizeWeekday(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// dateOnly truncates t to midnight in its own location.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// firstMonday returns the first Monday on or after September 1 of year,
// at midnight in loc.
func firstMonday(year int, loc *time.Location) time.Time {
	d := time.Date(year, time.September, 1, 0, 0, 0, 0, loc)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// anchorFor returns the week-1 Monday of the academic year containing
// date. Dates between September 1 and that year's first Monday still
// count against the previous academic year's anchor.
func anchorFor(date time.Time) time.Time {
	d := dateOnly(date)
	anchor := firstMonday(d.Year(), d.Location())
	if d.Before(anchor) {
		anchor = firstMonday(d.Year()-1, d.Location())
	}
	return anchor
}

// daysBetween counts calendar days from a to b, rounding away the hour
// a DST transition can add or remove.
func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// WeekNumber returns the academic week number (1-based) containing date.
func WeekNumber(date time.Time) int {
	return daysBetween(anchorFor(date), dateOnly(date))/7 + 1
}

// DateForWeekday resolves (week, weekday) back to a calendar date using
// the academic year containing ref — the inverse of WeekNumber, so
// WeekNumber(DateForWeekday(ref, w, d)) == w for any valid pair.
// weekday is 1-indexed Monday..Sunday.
func DateForWeekday(ref time.Time, week, weekday int) (time.Time, error) {
	if week < 1 {
		return time.Time{}, fmt.Errorf("week number %d out of range", week)
	}
	if weekday < 1 || weekday > 7 {
		return time.Time{}, fmt.Errorf("weekday %d out of range (want 1..7)", weekday)
	}
	return anchorFor(ref).AddDate(0, 0, (week-1)*7+weekday-1), nil
}

// WeekRange returns the Monday..Sunday date range of the given academic
// week in the academic year containing ref.
func WeekRange(ref time.Time, week int) (DateRange, error) {
	start, err := DateForWeekday(ref, week, 1)
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{Start: start, End: start.AddDate(0, 0, 6)}, nil
}

// IsWithinLesson reports whether ref falls inside the slot's bounds on
// lessonDate, inclusive at both ends.
func IsWithinLesson(slot TimeSlot, ref, lessonDate time.Time) bool {
	start := slot.Start.At(lessonDate)
	end := slot.End.At(lessonDate)
	return !ref.Before(start) && !ref.After(end)
}
