package billing

import "time"

// DateOf truncates t to its calendar date, represented as midnight UTC.
// The wall-clock date of t in its own location is kept.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(now.In(loc))
}

// DaysUntil returns the whole number of calendar days from today to date.
// It is negative when date is in the past.
func DaysUntil(date, today time.Time) int {
	return int(DateOf(date).Sub(DateOf(today)).Hours() / 24)
}

// DayWindow returns the instants bounding the calendar day date in loc:
// [start of day, start of next day).
func DayWindow(date time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
