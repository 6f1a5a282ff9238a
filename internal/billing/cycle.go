// Package billing holds billing-cycle rules and calendar date arithmetic for
// subscription renewals.
package billing

import (
	"errors"
	"fmt"
	"time"
)

// Cycle is a subscription billing cycle.
type Cycle string

const (
	Monthly   Cycle = "monthly"
	Quarterly Cycle = "quarterly"
	Yearly    Cycle = "yearly"
	Custom    Cycle = "custom"
)

// ErrUnknownCycle is returned for a billing cycle outside the known set.
var ErrUnknownCycle = errors.New("unknown billing cycle")

// Valid reports whether c is one of the known cycles.
func (c Cycle) Valid() bool {
	switch c {
	case Monthly, Quarterly, Yearly, Custom:
		return true
	}
	return false
}

// IsStatic reports whether a subscription with this cycle never advances on
// its own: a custom cycle without an interval.
func IsStatic(c Cycle, customIntervalDays *int) bool {
	return c == Custom && customIntervalDays == nil
}

// NextRenewal returns the renewal date one cycle after current.
//
// Month arithmetic clamps to the last day of the target month, so Jan 31
// plus one month is Feb 28 (or 29). A custom cycle without an interval
// returns current unchanged.
func NextRenewal(current time.Time, cycle Cycle, customIntervalDays *int) (time.Time, error) {
	d := DateOf(current)

	switch cycle {
	case Monthly:
		return addMonths(d, 1), nil
	case Quarterly:
		return addMonths(d, 3), nil
	case Yearly:
		return addMonths(d, 12), nil
	case Custom:
		if customIntervalDays == nil {
			return d, nil
		}
		return d.AddDate(0, 0, *customIntervalDays), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownCycle, string(cycle))
	}
}

func addMonths(d time.Time, months int) time.Time {
	y, m, day := d.Date()

	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
