package skedge

import (
	"math"
	"time"
)

// Unit is the periodicity granularity of a job.
// The zero value means "not set".
type Unit int

const (
	Second Unit = iota + 1
	Minute
	Hour
	Day
	Week
	Month
	Year
)

const day = 24 * time.Hour

// Duration returns interval units as a fixed duration.
// Months are four weeks and years are 52 weeks.
func (u Unit) Duration(interval int) time.Duration {
	n := time.Duration(interval)
	switch u {
	case Second:
		return n * time.Second
	case Minute:
		return n * time.Minute
	case Hour:
		return n * time.Hour
	case Day:
		return n * day
	case Week:
		return n * 7 * day
	case Month:
		return n * 4 * 7 * day
	case Year:
		return n * 52 * 7 * day
	default:
		return 0
	}
}

// fits reports whether interval units fit in a time.Duration.
func (u Unit) fits(interval int) bool {
	d := u.Duration(1)
	return d > 0 && int64(interval) <= math.MaxInt64/int64(d)
}

func (u Unit) String() string {
	switch u {
	case Second:
		return "second"
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	case Year:
		return "year"
	default:
		return "none"
	}
}

// plural is used in error messages ("cannot set weeks mode").
func (u Unit) plural() string { return u.String() + "s" }

// ParseUnit accepts singular or plural unit names ("minute", "minutes").
func ParseUnit(s string) (Unit, bool) {
	switch s {
	case "second", "seconds":
		return Second, true
	case "minute", "minutes":
		return Minute, true
	case "hour", "hours":
		return Hour, true
	case "day", "days":
		return Day, true
	case "week", "weeks":
		return Week, true
	case "month", "months":
		return Month, true
	case "year", "years":
		return Year, true
	default:
		return 0, false
	}
}

// mondayIndex maps a weekday onto 0 (Monday) .. 6 (Sunday).
func mondayIndex(d time.Weekday) int { return (int(d) + 6) % 7 }
